package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/mhorvath/tickethall/internal/adapters/mongo"
	"github.com/mhorvath/tickethall/internal/adapters/pg"
	"github.com/mhorvath/tickethall/internal/adapters/rabbit"
	redisadapter "github.com/mhorvath/tickethall/internal/adapters/redis"
	"github.com/mhorvath/tickethall/internal/admin"
	"github.com/mhorvath/tickethall/internal/booking"
	"github.com/mhorvath/tickethall/internal/clock"
	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/event"
	httphandler "github.com/mhorvath/tickethall/internal/http"
	"github.com/mhorvath/tickethall/internal/observability"
	"github.com/mhorvath/tickethall/internal/outbox"
	"github.com/mhorvath/tickethall/migrations"
)

type stack struct {
	repo   *pg.Repository
	server *httptest.Server
	rabbit *amqp.Connection
	mongo  *mongo.Database
}

func startStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tickethall",
				"POSTGRES_PASSWORD": "tickethall",
				"POSTGRES_DB":       "tickethall",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mongoContainer.Terminate(ctx) })

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health/checks/alarms").WithPort("15672").WithBasicAuth("guest", "guest"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rabbitContainer.Terminate(ctx) })

	endpoint := func(c testcontainers.Container, port string) string {
		host, err := c.Host(ctx)
		if err != nil {
			t.Fatal(err)
		}
		mapped, err := c.MappedPort(ctx, nat.Port(port))
		if err != nil {
			t.Fatal(err)
		}
		return host + ":" + mapped.Port()
	}

	dsn := "postgres://tickethall:tickethall@" + endpoint(pgContainer, "5432") + "/tickethall?sslmode=disable"
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	waitForPing(t, func() error { return pool.Ping(ctx) })
	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatal(err)
	}
	repo := pg.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+endpoint(mongoContainer, "27017")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mongoClient.Disconnect(ctx) })
	mongoDB := mongoClient.Database("tickethall")

	logger := observability.NewLogger()
	clk := clock.NewSystem()
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: endpoint(redisContainer, "6379")})
	cache := redisadapter.NewCache(redisClient)
	idemp := redisadapter.NewIdempotency(redisClient, time.Hour)

	rabbitConn, err := amqp.Dial("amqp://guest:guest@" + endpoint(rabbitContainer, "5672") + "/")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rabbitConn.Close() })
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}

	bookingSvc := booking.NewService(repo, clk, logger)
	eventSvc := event.NewService(repo, clk, logger)
	adminSvc := admin.NewService(repo, audit, logger)

	handlers := httphandler.NewHandlers(bookingSvc, eventSvc, adminSvc,
		cache, 30*time.Second, idemp, audit, logger)
	router := httphandler.SetupRouter(handlers, logger, repo, nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	relayCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	relay := outbox.NewPublisher(repo, rabbitPub, clk, logger, 200*time.Millisecond)
	go relay.Run(relayCtx)

	return &stack{repo: repo, server: server, rabbit: rabbitConn, mongo: mongoDB}
}

func waitForPing(t *testing.T, ping func() error) {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for {
		err := ping()
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("dependency did not come up: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func (s *stack) seedUser(t *testing.T, role domain.Role) domain.User {
	t.Helper()
	u := domain.User{
		ID:        uuid.New(),
		Name:      "User " + uuid.NewString()[:8],
		Email:     uuid.NewString()[:8] + "@example.com",
		Role:      role,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (s *stack) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestIntegration_BookingFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	s := startStack(t)
	organizer := s.seedUser(t, domain.RoleOrganizer)
	adminUser := s.seedUser(t, domain.RoleAdmin)

	consumer, err := rabbit.NewConsumer(s.rabbit, "notifications.test", "booking.created")
	if err != nil {
		t.Fatal(err)
	}
	deliveries, err := consumer.Consume(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// organizer creates a draft, then publishes it
	resp, body := s.do(t, "POST", "/v1/events", map[string]interface{}{
		"title":                "Concert",
		"starts_at":            time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
		"capacity":             3,
		"price":                "12.50",
		"max_tickets_per_user": 2,
	}, map[string]string{"X-User-ID": organizer.ID.String()})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create event: %d %v", resp.StatusCode, body)
	}
	eventID := body["data"].(map[string]interface{})["id"].(string)

	// drafts cannot be booked
	resp, body = s.do(t, "POST", "/v1/events/"+eventID+"/bookings", map[string]interface{}{
		"quantity": 1, "guest_name": "Jane", "guest_email": "jane@example.com",
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("draft booking status = %d, want 422", resp.StatusCode)
	}
	if _, ok := body["errors"].(map[string]interface{})["event"]; !ok {
		t.Fatalf("draft booking errors = %v, want key event", body["errors"])
	}

	resp, body = s.do(t, "PATCH", "/v1/events/"+eventID+"/status", map[string]interface{}{
		"status": "published",
	}, map[string]string{"X-User-ID": organizer.ID.String()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish: %d %v", resp.StatusCode, body)
	}

	// guest books two tickets
	idempKey := uuid.NewString()
	resp, body = s.do(t, "POST", "/v1/events/"+eventID+"/bookings", map[string]interface{}{
		"quantity": 2, "guest_name": "Jane", "guest_email": "jane@example.com",
	}, map[string]string{"Idempotency-Key": idempKey})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("booking: %d %v", resp.StatusCode, body)
	}
	bookingData := body["data"].(map[string]interface{})
	if bookingData["totalPrice"] != "25.00" {
		t.Errorf("totalPrice = %v, want 25.00", bookingData["totalPrice"])
	}
	firstBookingID := bookingData["id"].(string)

	// replaying the same key must not create a second booking
	resp, body = s.do(t, "POST", "/v1/events/"+eventID+"/bookings", map[string]interface{}{
		"quantity": 2, "guest_name": "Jane", "guest_email": "jane@example.com",
	}, map[string]string{"Idempotency-Key": idempKey})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("replay: %d", resp.StatusCode)
	}
	if body["data"].(map[string]interface{})["id"].(string) != firstBookingID {
		t.Error("replay created a new booking")
	}

	// same guest identity is over quota now
	resp, body = s.do(t, "POST", "/v1/events/"+eventID+"/bookings", map[string]interface{}{
		"quantity": 1, "guest_name": "Jane", "guest_email": "jane@example.com",
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("quota status = %d, want 422", resp.StatusCode)
	}
	errs := body["errors"].(map[string]interface{})
	if _, ok := errs["quantity"]; !ok {
		t.Errorf("errors = %v, want quantity key", errs)
	}

	// another guest hits the capacity wall at 2 of 1 remaining
	resp, body = s.do(t, "POST", "/v1/events/"+eventID+"/bookings", map[string]interface{}{
		"quantity": 2, "guest_name": "John", "guest_email": "john@example.com",
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("capacity status = %d, want 422", resp.StatusCode)
	}
	msgs := body["errors"].(map[string]interface{})["quantity"].([]interface{})
	if msgs[0] != "Only 1 ticket(s) left for this event." {
		t.Errorf("capacity message = %v", msgs[0])
	}

	// the event detail reflects one remaining seat
	resp, body = s.do(t, "GET", "/v1/events/"+eventID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get event: %d", resp.StatusCode)
	}
	if got := body["data"].(map[string]interface{})["availableSeats"]; got != float64(1) {
		t.Errorf("availableSeats = %v, want 1", got)
	}

	// the outbox relay delivers booking.created to the broker
	select {
	case d := <-deliveries:
		var payload map[string]interface{}
		if err := json.Unmarshal(d.Body, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload["booking_id"] != firstBookingID {
			t.Errorf("booking_id = %v, want %v", payload["booking_id"], firstBookingID)
		}
		d.Ack(false)
	case <-time.After(15 * time.Second):
		t.Fatal("no booking.created message received")
	}

	// the audit trail recorded the booking
	waitForPing(t, func() error {
		n, err := s.mongo.Collection("audit_logs").CountDocuments(context.Background(),
			bson.M{"action": "booking.created"})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no audit entries yet")
		}
		return nil
	})

	// organizer sees the confirmed booking, admin sees the user list
	resp, body = s.do(t, "GET", "/v1/events/"+eventID+"/bookings", nil,
		map[string]string{"X-User-ID": organizer.ID.String()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list bookings: %d", resp.StatusCode)
	}
	if n := len(body["data"].([]interface{})); n != 1 {
		t.Errorf("bookings = %d, want 1", n)
	}

	resp, body = s.do(t, "GET", "/v1/admin/users", nil,
		map[string]string{"X-User-ID": adminUser.ID.String()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: %d", resp.StatusCode)
	}
	if total := body["meta"].(map[string]interface{})["total"]; total != float64(2) {
		t.Errorf("total users = %v, want 2", total)
	}
}
