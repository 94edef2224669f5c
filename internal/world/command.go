package world

// Command is a mutation request queued by a connection and applied by the
// game loop at the start of the next tick.
type Command interface {
	command()
}

// JoinCommand adds Username to the room. The result is delivered on Reply,
// which must be buffered.
type JoinCommand struct {
	Username string
	Reply    chan<- error
}

// InputCommand applies one input sample for Username.
type InputCommand struct {
	Username string
	Input    Input
}

// LeaveCommand removes Username from the room.
type LeaveCommand struct {
	Username string
}

func (JoinCommand) command()  {}
func (InputCommand) command() {}
func (LeaveCommand) command() {}
