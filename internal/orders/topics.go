package orders

// TopicOrderEvents carries every order and product event, keyed by order id
// (product id for ProductChanged) so one entity's events stay in order.
const TopicOrderEvents = "storefront.orders"
