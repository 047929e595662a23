package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigningGatewaySubmit(t *testing.T) {
	sig := testSignature(11)
	agent := newFakeAgent(signWith(sig))
	gateway := NewSigningGateway(testLogger(), agentTable{agent.Name(): agent}, agent.Name())

	sender, err := gateway.Sender()
	require.NoError(t, err)
	assert.Equal(t, agent.PublicKey(), sender)

	got, err := gateway.Submit(context.Background(), &entities.TransferRequest{SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, sig, got)
}

func TestSigningGatewayErrors(t *testing.T) {
	t.Run("no registry", func(t *testing.T) {
		gateway := NewSigningGateway(testLogger(), nil, "keypair")

		_, err := gateway.Sender()
		assert.ErrorIs(t, err, ports.ErrAgentUnavailable)
	})

	t.Run("unknown agent", func(t *testing.T) {
		gateway := NewSigningGateway(testLogger(), agentTable{}, "ledger-nano")

		_, err := gateway.Submit(context.Background(), &entities.TransferRequest{})
		var submitErr *SubmitError
		require.ErrorAs(t, err, &submitErr)
		assert.Equal(t, "ledger-nano", submitErr.Agent)
		assert.ErrorIs(t, err, ports.ErrAgentUnavailable)
	})

	t.Run("agent failure", func(t *testing.T) {
		agent := newFakeAgent(func(context.Context, *entities.TransferRequest) (solana.Signature, error) {
			return solana.Signature{}, errors.New("node is behind")
		})
		gateway := NewSigningGateway(testLogger(), agentTable{agent.Name(): agent}, agent.Name())

		_, err := gateway.Submit(context.Background(), &entities.TransferRequest{})
		var submitErr *SubmitError
		require.ErrorAs(t, err, &submitErr)
		assert.Equal(t, "node is behind", userMessage(err))
	})

	t.Run("missing signature", func(t *testing.T) {
		agent := newFakeAgent(signWith(solana.Signature{}))
		gateway := NewSigningGateway(testLogger(), agentTable{agent.Name(): agent}, agent.Name())

		_, err := gateway.Submit(context.Background(), &entities.TransferRequest{})
		assert.ErrorIs(t, err, ports.ErrMissingSignature)
		assert.Equal(t, MsgMissingSignature, userMessage(err))
	})
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MsgUserCancelled, userMessage(&SubmitError{Agent: "keypair", Err: ports.ErrUserRejected}))
	assert.Equal(t, MsgInvalidRecipient, userMessage(&ValidationError{Field: "recipient", Err: ports.ErrInvalidRecipient}))
	assert.Equal(t, MsgExpired, userMessage(&SubmitError{Err: ports.ErrFreshnessExpired}))
	assert.Equal(t, MsgUnexpected, userMessage(errors.New("???")))
}
