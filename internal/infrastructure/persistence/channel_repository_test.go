package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/channel"
)

// newMockDB creates a gorm handle over a mocked SQL connection
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormChannelRepository_FindByID(t *testing.T) {
	t.Run("finds existing channel", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormChannelRepository(db)

		channelID := uuid.New()
		tenantID := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "type", "config", "active", "last_sync_at", "created_at", "updated_at"}).
			AddRow(channelID, tenantID, "main-shop", "shopify", `{"shop_domain":"x.myshopify.com"}`, true, nil, time.Now(), time.Now())

		mock.ExpectQuery(`SELECT \* FROM "channels" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(channelID, 1).
			WillReturnRows(rows)

		ch, err := repo.FindByID(context.Background(), channelID)
		require.NoError(t, err)
		assert.Equal(t, channelID, ch.ID)
		assert.Equal(t, channel.ChannelTypeShopify, ch.Type)
		assert.Equal(t, "x.myshopify.com", ch.ConfigString("shop_domain"))
		assert.True(t, ch.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns sentinel when missing", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormChannelRepository(db)

		channelID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "channels" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(channelID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.FindByID(context.Background(), channelID)
		assert.ErrorIs(t, err, channel.ErrChannelNotFound)
	})
}

func TestGormChannelRepository_FindActiveByTenant(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormChannelRepository(db)

	tenantID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "type", "config", "active", "last_sync_at", "created_at", "updated_at"}).
		AddRow(uuid.New(), tenantID, "amazon-eu", "amazon", `{}`, true, nil, time.Now(), time.Now()).
		AddRow(uuid.New(), tenantID, "main-shop", "shopify", `{}`, true, nil, time.Now(), time.Now())

	mock.ExpectQuery(`SELECT \* FROM "channels" WHERE tenant_id = \$1 AND active = \$2 ORDER BY name ASC`).
		WithArgs(tenantID, true).
		WillReturnRows(rows)

	channels, err := repo.FindActiveByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "amazon-eu", channels[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormChannelRepository_Delete(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormChannelRepository(db)

	channelID := uuid.New()
	mock.ExpectExec(`DELETE FROM "channels" WHERE id = \$1`).
		WithArgs(channelID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), channelID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
