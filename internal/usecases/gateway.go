package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/sand/solnests/backend/internal/core/ports"
	"github.com/sand/solnests/backend/internal/entities"
)

// AgentLookup resolves a signing agent by name.
type AgentLookup interface {
	Lookup(name string) (ports.SigningAgent, error)
}

// SigningGateway hands built requests to the configured signing agent.
type SigningGateway struct {
	logger    *slog.Logger
	agents    AgentLookup
	agentName string
}

func NewSigningGateway(logger *slog.Logger, agents AgentLookup, agentName string) *SigningGateway {
	return &SigningGateway{logger: logger, agents: agents, agentName: agentName}
}

// Sender returns the account the configured agent signs for.
func (g *SigningGateway) Sender() (solana.PublicKey, error) {
	agent, err := g.agent()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return agent.PublicKey(), nil
}

// Submit asks the agent to sign and broadcast req and returns the transaction signature.
func (g *SigningGateway) Submit(ctx context.Context, req *entities.TransferRequest) (solana.Signature, error) {
	agent, err := g.agent()
	if err != nil {
		return solana.Signature{}, err
	}

	g.logger.InfoContext(ctx, "Requesting signature",
		"agent", agent.Name(),
		"session_id", req.SessionID,
		"recipient", req.Recipient.String(),
		"lamports", req.Lamports)

	signature, err := agent.SignAndBroadcast(ctx, req)
	if err != nil {
		if errors.Is(err, ports.ErrUserRejected) {
			g.logger.InfoContext(ctx, "Signature request rejected by user", "session_id", req.SessionID)
		}
		return solana.Signature{}, &SubmitError{Agent: agent.Name(), Err: err}
	}

	if signature.IsZero() {
		return solana.Signature{}, &SubmitError{Agent: agent.Name(), Err: ports.ErrMissingSignature}
	}

	g.logger.InfoContext(ctx, "Transaction broadcast",
		"agent", agent.Name(),
		"session_id", req.SessionID,
		"tx_signature", signature.String())

	return signature, nil
}

func (g *SigningGateway) agent() (ports.SigningAgent, error) {
	if g.agents == nil {
		return nil, &SubmitError{Agent: g.agentName, Err: ports.ErrAgentUnavailable}
	}

	agent, err := g.agents.Lookup(g.agentName)
	if err != nil {
		return nil, &SubmitError{Agent: g.agentName, Err: err}
	}

	return agent, nil
}
