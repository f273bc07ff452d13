// Package participant is the client side of a groupcast group.
//
// A [Client] sends control-plane commands to a coordinator and returns its
// acknowledgment. A [Listener] accepts the coordinator's pushes: one message
// per connection, or a batch of buffered messages right after a reconnect.
// [Participant] combines both with the command ordering rules of the
// interactive client and an [Inbox] that records every received message.
//
//	p, err := participant.New(participant.Config{
//	    ID:          3,
//	    Coordinator: "127.0.0.1:5000",
//	    InboxPath:   "messages-3.txt",
//	}, participant.WithOnDelivery(func(d participant.Delivery) {
//	    fmt.Println(d.Messages)
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ack, err := p.Register(ctx, 6003)
package participant
