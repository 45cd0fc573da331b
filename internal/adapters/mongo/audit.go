package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

// AuditLogger appends booking and admin actions to a Mongo collection. The
// audit trail is best effort; failures are logged, never propagated into the
// request flow.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	ActorID   string    `bson:"actor_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, actorID string, data map[string]interface{}) error {
	entry := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, entry)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

// LogBookingCreated records a confirmed booking. Registered bookings are
// attributed to the user id, guest bookings to the guest email.
func (a *AuditLogger) LogBookingCreated(ctx context.Context, b domain.Booking) error {
	actor := b.GuestEmail
	if b.UserID != nil {
		actor = b.UserID.String()
	}
	return a.LogEvent(ctx, "booking.created", actor, map[string]interface{}{
		"booking_id":  b.ID.String(),
		"event_id":    b.EventID.String(),
		"quantity":    b.Quantity,
		"total_price": b.FormattedTotal(),
	})
}

func (a *AuditLogger) LogAdminAction(ctx context.Context, action string, actorID uuid.UUID, data map[string]interface{}) error {
	return a.LogEvent(ctx, action, actorID.String(), data)
}
