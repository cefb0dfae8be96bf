package ports

// RequestGateway defines an inbound surface that accepts emails, hands them
// to the classification service and returns or annotates the result
type RequestGateway interface {
	// Start starts the gateway
	Start() error

	// Stop stops the gateway
	Stop() error
}
