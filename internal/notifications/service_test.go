package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
)

func TestListIncludesBroadcasts(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	otherID := uuid.New()

	seedNotification(t, db, &userID, enums.NotificationTypeOrderUpdate)
	seedNotification(t, db, nil, enums.NotificationTypeSaleMilestone)
	seedNotification(t, db, &otherID, enums.NotificationTypeOrderUpdate)

	result, err := svc.List(ctx, ListParams{UserID: userID})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
}

func TestMarkReadScopedToUser(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	otherID := uuid.New()

	mine := seedNotification(t, db, &userID, enums.NotificationTypeStockAlert)
	theirs := seedNotification(t, db, &otherID, enums.NotificationTypeStockAlert)

	require.NoError(t, svc.MarkRead(ctx, userID, mine.ID))

	err := svc.MarkRead(ctx, userID, theirs.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	result, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, result.Items)
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	seedNotification(t, db, &userID, enums.NotificationTypeOrderUpdate)
	seedNotification(t, db, nil, enums.NotificationTypeSaleMilestone)

	updated, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated)

	updated, err = svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, updated)
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}, &models.Sale{}))
	return db
}

func seedNotification(t *testing.T, db *gorm.DB, userID *uuid.UUID, kind enums.NotificationType) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   "title",
		Message: "message",
	}
	require.NoError(t, db.Create(notification).Error)
	return notification
}
