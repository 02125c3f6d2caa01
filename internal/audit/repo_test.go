package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/void1100/Bank-management-system/pkg/db/dbtest"
	"github.com/void1100/Bank-management-system/pkg/enums"
)

func TestAppendAndList(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	eventID := uuid.New()

	require.NoError(t, repo.Append(context.Background(), eventID, CompletedInfo(enums.EventTypeDeposit, decimal.NewFromInt(6000))))

	rows, err := repo.ListByEvent(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Completed deposit 6000.00", rows[0].Info)
}

func TestExecutedWithdrawalInfo(t *testing.T) {
	assert.Equal(t, "Executed withdraw 15000.50 after OTP verification",
		ExecutedWithdrawalInfo(decimal.RequireFromString("15000.5")))
}
