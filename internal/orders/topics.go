package orders

const (
	TopicOrderCreated   = "preorder.order.created"
	TopicOrderPaid      = "preorder.order.paid"
	TopicOrderCancelled = "preorder.order.cancelled"
)

// Partition key = order id, so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
