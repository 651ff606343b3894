// Package easyappointments provides a client for the Easy!Appointments
// REST API (/api/v1).
//
// Easy!Appointments is a self-hosted appointment scheduler. This package
// exposes typed list/get/create/update/delete operations for admins,
// providers, customers, services, categories and appointments, plus the
// availabilities lookup.
//
// # Usage
//
// Create a client with the API root and an API key:
//
//	logger := zerolog.New(os.Stdout)
//	client, err := easyappointments.NewClient(
//		"https://booking.example.com/index.php/api/v1",
//		"your-api-key",
//		logger,
//		easyappointments.WithTimeout(10*time.Second),
//		easyappointments.WithMaxRetries(3),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	page, err := client.Providers.List(ctx, &easyappointments.ListOptions{Length: 20})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Retries
//
// Network failures, 429 and 5xx responses are retried with exponential
// backoff (delay, 2*delay, 4*delay, ... capped at 10*delay). Every method
// is retried by default; WithIdempotentRetriesOnly sends POST and PUT
// exactly once.
//
// # Error Handling
//
// Every request error is an *Error whose Kind classifies the failure. The
// sentinels ErrAuthentication, ErrNotFound, ErrValidation, ErrRateLimit,
// ErrServer, ErrNetwork and ErrUsage match through errors.Is:
//
//	_, err := client.Customers.Get(ctx, 7)
//	if errors.Is(err, easyappointments.ErrNotFound) {
//		// Handle missing customer
//	}
//
// Validation errors carry per-field messages in Error.Fields, keyed by the
// API's field names.
package easyappointments
