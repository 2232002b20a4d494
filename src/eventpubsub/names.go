package eventpubsub

const (
	OrderReceivedEvent   = "OrderReceivedEvent"
	OrderExecutedEvent   = "OrderExecutedEvent"
	OrderRejectedEvent   = "OrderRejectedEvent"
	SnapshotCreatedEvent = "SnapshotCreatedEvent"
)
