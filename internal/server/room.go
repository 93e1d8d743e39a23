package server

const (
	userRoomPrefix = "user:"
	chatRoomPrefix = "chat:"
)

// UserRoom is the own-user room of userId. Only connections authenticated as
// userId are ever members.
func UserRoom(userId string) string {
	return userRoomPrefix + userId
}

func ChatRoom(chatId string) string {
	return chatRoomPrefix + chatId
}
