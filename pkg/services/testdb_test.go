package services

import (
	"fmt"
	"strings"
	"testing"

	"medsoc-cms/pkg/database"
	"medsoc-cms/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory SQLite database with the schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "x",
		Name:         "Editor",
		Role:         models.RoleAdmin,
		Active:       true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
