package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
)

// TopicFor maps an event type to its Kafka topic.
func TopicFor(eventType string) (string, bool) {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated, true
	case EventOrderStatusChanged:
		return TopicOrderStatusChanged, true
	}
	return "", false
}

// Partition key = order id, so the events of one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
