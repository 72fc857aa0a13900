package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrecon/internal/domain"
	"payrecon/internal/repository/sqlite"
)

func adviceFixture() *domain.PaymentAdvice {
	invDate := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	return &domain.PaymentAdvice{
		ID:            uuid.New(),
		FileName:      "advice-001.txt",
		FileLocation:  "/data/advices/advice-001.txt",
		BankReference: "HDFC0012345678",
		BankName:      "HDFC Bank",
		CustomerName:  "Acme Industries",
		InvoiceDate:   &invDate,
		GrossAmount:   decimal.NewFromInt(10000),
		TDSAmount:     decimal.NewFromInt(1000),
		NetAmount:     decimal.NewFromInt(9000),
		InvoiceReferences: []string{"10EXT2425/106", "INV-2425-0017"},
		LineAmounts: map[string]decimal.Decimal{
			"10EXT2425106": decimal.NewFromInt(6000),
			"INV24250017":  decimal.NewFromInt(3000),
		},
		RawText: "Payment advice raw text",
	}
}

func TestAdviceRepo_CreateAndGetByID(t *testing.T) {
	repo := sqlite.NewAdviceRepo(testDB(t))
	ctx := context.Background()

	advice := adviceFixture()
	require.NoError(t, repo.Create(ctx, advice))

	got, err := repo.GetByID(ctx, advice.ID)
	require.NoError(t, err)

	assert.Equal(t, advice.FileName, got.FileName)
	assert.Equal(t, advice.BankReference, got.BankReference)
	assert.Equal(t, advice.CustomerName, got.CustomerName)
	assert.True(t, advice.GrossAmount.Equal(got.GrossAmount))
	assert.True(t, advice.TDSAmount.Equal(got.TDSAmount))
	assert.True(t, advice.NetAmount.Equal(got.NetAmount))
	require.NotNil(t, got.InvoiceDate)
	assert.True(t, advice.InvoiceDate.Equal(*got.InvoiceDate))
	assert.Nil(t, got.PaymentDate)

	assert.Equal(t, []string{"10EXT2425/106", "INV-2425-0017"}, got.InvoiceReferences)
	require.Len(t, got.LineAmounts, 2)
	assert.True(t, decimal.NewFromInt(6000).Equal(got.LineAmounts["10EXT2425106"]))
	assert.True(t, decimal.NewFromInt(3000).Equal(got.LineAmounts["INV24250017"]))
}

func TestAdviceRepo_CreateWithoutLineAmounts(t *testing.T) {
	repo := sqlite.NewAdviceRepo(testDB(t))
	ctx := context.Background()

	advice := adviceFixture()
	advice.LineAmounts = nil
	require.NoError(t, repo.Create(ctx, advice))

	got, err := repo.GetByID(ctx, advice.ID)
	require.NoError(t, err)
	assert.Len(t, got.InvoiceReferences, 2)
	assert.Nil(t, got.LineAmounts)
}

func TestAdviceRepo_GetByID_NotFound(t *testing.T) {
	repo := sqlite.NewAdviceRepo(testDB(t))
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdviceRepo_GetByBankReference_LatestWins(t *testing.T) {
	repo := sqlite.NewAdviceRepo(testDB(t))
	ctx := context.Background()

	older := adviceFixture()
	older.CreatedAt = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	newer := adviceFixture()
	newer.ID = uuid.New()
	newer.FileName = "advice-002.txt"
	newer.CreatedAt = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	got, err := repo.GetByBankReference(ctx, "HDFC0012345678")
	require.NoError(t, err)
	assert.Equal(t, "advice-002.txt", got.FileName)
}

func TestAdviceRepo_ListPaginated(t *testing.T) {
	repo := sqlite.NewAdviceRepo(testDB(t))
	ctx := context.Background()

	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := adviceFixture()
		a.ID = uuid.New()
		a.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, a))
	}

	page, total, err := repo.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	rest, total, err := repo.List(ctx, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, rest, 1)
}

func TestAdviceRepo_DeleteAll(t *testing.T) {
	repo := sqlite.NewAdviceRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, adviceFixture()))
	require.NoError(t, repo.DeleteAll(ctx))

	_, total, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
