// Package notification defines the outbound message records written by the
// checkout transaction. Delivery is the responsibility of an external
// consumer; this service only records the intent, atomically with the order.
package notification

// TemplateOrderConfirmation is the template rendered for a completed checkout.
const TemplateOrderConfirmation = "orderConfirmation"

// OrderConfirmationData is the template payload for an order confirmation.
type OrderConfirmationData struct {
	OrderID     string `json:"orderId"`
	TotalAmount string `json:"totalAmount"`
	Name        string `json:"name"`
}

// Notification describes one email to be sent by the delivery consumer.
type Notification struct {
	To       []string
	Template Template
}

// Template names the email template and carries its data.
type Template struct {
	Name string
	Data OrderConfirmationData
}
