package executor_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/enrollhub/enrollment-server-go/pkg/executor"
)

type note struct {
	ID   uint   `gorm:"primaryKey"`
	Body string `gorm:"type:text"`
}

var testDBCounter atomic.Uint64

func newService(t *testing.T) (*executor.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:exectest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&note{}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return executor.NewService(db, logger), db
}

func TestExecuteSuccess(t *testing.T) {
	svc, db := newService(t)

	var hookData interface{}
	result := svc.Execute(context.Background(), executor.Operation{
		Type: "test.create",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			n := note{Body: "hello"}
			if err := tx.Create(&n).Error; err != nil {
				return nil, err
			}
			return n, nil
		},
		OnSuccess: func(data interface{}) { hookData = data },
	})

	require.True(t, result.Success)
	require.Nil(t, result.Error)
	require.NotEmpty(t, result.OperationID)
	require.False(t, result.Timestamp.IsZero())
	require.Equal(t, result.Data, hookData)

	var count int64
	require.NoError(t, db.Model(&note{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestExecuteValidationFailureSkipsTransaction(t *testing.T) {
	svc, _ := newService(t)

	executed := false
	var hookErr error
	result := svc.Execute(context.Background(), executor.Operation{
		Type: "test.invalid",
		Validate: func(ctx context.Context) executor.ValidationResult {
			return executor.ValidationResult{
				Valid:    false,
				Errors:   []string{"first violation", "second violation"},
				Warnings: []string{"heads up"},
			}
		},
		Execute: func(tx *gorm.DB) (interface{}, error) {
			executed = true
			return nil, nil
		},
		OnFailure: func(err error) { hookErr = err },
	})

	require.False(t, result.Success)
	require.False(t, executed)
	require.Equal(t, executor.CodeValidation, result.Error.Code)
	require.False(t, result.Error.Retryable)
	require.Equal(t, []string{"first violation", "second violation"}, result.Error.Details)
	require.Equal(t, []string{"heads up"}, result.Warnings)
	require.Equal(t, result.Error, hookErr)
}

func TestExecuteFailureRollsBack(t *testing.T) {
	svc, db := newService(t)

	boom := errors.New("storage exploded")
	result := svc.Execute(context.Background(), executor.Operation{
		Type: "test.fail",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			if err := tx.Create(&note{Body: "doomed"}).Error; err != nil {
				return nil, err
			}
			return nil, boom
		},
	})

	require.False(t, result.Success)
	require.Equal(t, executor.CodeOperation, result.Error.Code)
	require.ErrorIs(t, result.Error, boom)
	require.False(t, result.Error.Retryable)

	var count int64
	require.NoError(t, db.Model(&note{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestExecuteHookPanicIsIsolated(t *testing.T) {
	svc, _ := newService(t)

	result := svc.Execute(context.Background(), executor.Operation{
		Type: "test.panicky",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return "ok", nil
		},
		OnSuccess: func(data interface{}) { panic("hook gone wrong") },
	})

	require.True(t, result.Success)
	require.Equal(t, "ok", result.Data)
}

func TestOperationIDsAreUnique(t *testing.T) {
	svc, _ := newService(t)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		result := svc.Execute(context.Background(), executor.Operation{
			Type: "test.id",
			Execute: func(tx *gorm.DB) (interface{}, error) {
				return nil, nil
			},
		})
		require.False(t, seen[result.OperationID])
		seen[result.OperationID] = true
	}
}
