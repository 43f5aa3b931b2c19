package protocol

type Command string

const (
	PING    Command = "PING"
	GET     Command = "GET"
	SET     Command = "SET"
	APPEND  Command = "APPEND"
	KEYS    Command = "KEYS"
	EXISTS  Command = "EXISTS"
	COMMAND Command = "COMMAND"
)

const (
	RespPong = "PONG"
	RespOk   = "OK"
)
