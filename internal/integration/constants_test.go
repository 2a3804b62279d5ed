package integration_test

const (
	dbName          = "theatre_reservation"
	dbUser          = "test_user"
	dbPassword      = "test_password"
	dbImageName     = "postgres:17-alpine"
	cacheImageName  = "redis:7"
	brokerImageName = "rabbitmq:4-alpine"
	brokerUser      = "theatre"
	brokerPassword  = "theatre"

	// Users the sessions are issued for
	TestUserId      = 1
	OtherTestUserId = 2

	// Catalog rows inserted by testdata/catalog_up.sql
	SmallStagePerformanceId = 1
	MainStagePerformanceId  = 2
	SmallStageCapacity      = 4
	MainStageCapacity       = 120
)
