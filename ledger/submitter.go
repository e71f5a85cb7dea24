package ledger

import (
	"context"
	"fmt"

	"ibird-backend/models"
	"ibird-backend/workflow"
)

// Submitter packages a structured payload and submits it as a signed
// transaction to a named topic. Errors come back classified for the workflow
// boundary: user rejection passes through as the sentinel, a non-SUCCESS
// receipt becomes a TransactionFailure, everything else a SubmissionError.
type Submitter struct {
	conn Connector
}

// NewSubmitter wraps a connector.
func NewSubmitter(conn Connector) *Submitter {
	return &Submitter{conn: conn}
}

// Submit encodes the payload and sends it to topicID. The receipt is returned
// alongside a TransactionFailure when the network rejected the transaction.
func (s *Submitter) Submit(ctx context.Context, topicID string, payload models.Payload, memo string) (*models.Receipt, error) {
	if topicID == "" {
		return nil, &workflow.SubmissionError{Err: fmt.Errorf("missing topic ID")}
	}

	data, err := payload.Encode()
	if err != nil {
		return nil, &workflow.SubmissionError{Err: err}
	}

	receipt, err := s.conn.SubmitMessage(ctx, topicID, data, memo)
	if err != nil {
		if workflow.IsUserRejection(err) {
			return nil, err
		}
		return nil, &workflow.SubmissionError{Err: err}
	}
	if receipt == nil {
		// Legacy connectors signalled a declined signature with a missing
		// receipt; normalize to the one rejection sentinel.
		return nil, workflow.ErrUserRejected
	}
	if receipt.Result != models.ReceiptSuccess {
		return receipt, &workflow.TransactionFailure{
			TransactionID: receipt.TransactionID,
			Result:        receipt.Result,
		}
	}
	return receipt, nil
}
