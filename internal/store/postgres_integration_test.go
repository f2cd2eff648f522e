//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/idgen"
	"github.com/lumenpay/gateway/internal/money"
)

func startPostgresContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gateway",
			"POSTGRES_PASSWORD": "gateway",
			"POSTGRES_DB":       "gateway",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://gateway:gateway@%s:%s/gateway?sslmode=disable", host, port.Port())
}

func TestPostgresStoreCreatePaymentAndRefund(t *testing.T) {
	dsn := startPostgresContainer(t)
	s, err := NewPostgresStore(dsn, config.PostgresPoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	amount, err := money.New("100.00", "USD")
	require.NoError(t, err)

	p := Payment{ID: idgen.Payment(), Amount: amount, Status: PaymentCompleted, CustomerEmail: "a@b.c"}
	_, err = s.CreatePayment(ctx, CreatePaymentInput{Payment: p, IdempotencyKey: "K1"})
	require.NoError(t, err)

	refundAmount, err := money.New("40.00", "USD")
	require.NoError(t, err)
	refund, updated, err := s.CreateRefund(ctx, p.ID, Refund{ID: idgen.Refund(), Amount: refundAmount}, "customer request")
	require.NoError(t, err)
	require.Equal(t, PaymentPartialRefunded, updated.Status)
	require.Equal(t, RefundProcessed, refund.Status)

	loaded, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, PaymentPartialRefunded, loaded.Status)
}
