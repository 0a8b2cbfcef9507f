//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rigshare/service-booking/internal/application"
	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	policyDomain "github.com/rigshare/service-booking/internal/domain/policy"
	bookingEvents "github.com/rigshare/service-booking/internal/events"
	"github.com/rigshare/service-booking/internal/jobs"
	"github.com/rigshare/service-booking/internal/policycache"
	"github.com/rigshare/service-booking/internal/repository"
	"github.com/rigshare/service-booking/pkg/database"
	"github.com/rigshare/service-booking/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Listings        *application.ListingService
	Insurance       *application.InsuranceService
	Lifecycle       *application.LifecycleService
	Consumer        *bookingEvents.PaymentEventConsumer
	Relay           *jobs.AuditRelay
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the
// SQL migrations and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(pgConfig, log)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(pgConfig.DatabaseURL(), "migrations", log))

	// confluent-local supports KRaft natively.
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers,
		bookingEvents.TopicPaymentEvents,
		bookingEvents.TopicBookingLifecycle,
		bookingEvents.TopicNotifications,
	)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack the way main does.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	auditRepo := repository.NewGormAuditEventRepository(db)
	listingRepo := repository.NewGormListingRepository(db)
	policyRepo := repository.NewGormPolicyRepository(db)

	producer := kafka.NewProducer(brokers, logger)
	audit := bookingEvents.NewAuditPublisher(auditRepo, producer, logger)
	notifier := bookingEvents.NewNotificationPublisher(producer)

	fees, err := bookingDomain.NewFeeCalculator(bookingDomain.DefaultPlatformFeeRate)
	require.NoError(t, err)

	insurance := application.NewInsuranceService(policyRepo, policycache.New(policyRepo, time.Second), policyDomain.DefaultSlug, logger)
	listings := application.NewListingService(listingRepo, logger)
	bookings := application.NewBookingService(bookingRepo, auditRepo, listingRepo, insurance, fees, audit, notifier, logger)
	lifecycle := application.NewLifecycleService(bookingRepo, audit, notifier, logger)

	relay, err := jobs.NewAuditRelay("@every 1s", auditRepo, audit, logger)
	require.NoError(t, err)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, lifecycle, logger)

	return &bookingStack{
		Bookings:        bookings,
		Listings:        listings,
		Insurance:       insurance,
		Lifecycle:       lifecycle,
		Consumer:        consumer,
		Relay:           relay,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedAcceptedBooking publishes a policy, creates a listing and books it,
// then has the owner accept. It returns the booking and its owner.
func seedAcceptedBooking(t *testing.T, stack *bookingStack) (*application.BookingDTO, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	ownerID, renterID := uuid.New(), uuid.New()

	policy, err := stack.Insurance.PublishPolicy(ctx, uuid.New(), application.PublishPolicyRequest{
		Title:   "Insurance & Damage",
		Content: "Renters are responsible for damage beyond fair wear.",
	})
	require.NoError(t, err)

	listing, err := stack.Listings.CreateListing(ctx, ownerID, application.CreateListingRequest{
		Title:       "Excavator 1.7t",
		Category:    "earthmoving",
		DailyRate:   decimal.RequireFromString("250"),
		DeliveryFee: decimal.RequireFromString("50"),
		BondAmount:  decimal.RequireFromString("200"),
		Insurance:   application.InsuranceTermsRequest{Mode: string(bookingDomain.InsuranceRenterResponsible)},
	})
	require.NoError(t, err)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	bk, err := stack.Bookings.CreateBooking(ctx, renterID, application.CreateBookingRequest{
		ListingID:                    listing.ID,
		StartDate:                    start,
		EndDate:                      start.Add(48 * time.Hour),
		AcceptedPolicyVersion:        policy.Version,
		OwnerTermsAccepted:           true,
		RenterResponsibilityAccepted: true,
	})
	require.NoError(t, err)

	owner := application.Actor{ID: ownerID, Role: bookingDomain.ActorOwner}
	result := stack.Lifecycle.AcceptBooking(ctx, bk.ID, owner)
	require.True(t, result.Success, result.Error)
	return result.Booking, ownerID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeEvent reads from a Kafka topic until match accepts an event of the
// expected type.
func consumeEvent(t *testing.T, brokers []string, topic, expectedType string, match func(kafka.CloudEvent) bool, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && match(ce) {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
