// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package manualseal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/sealharness/rpcclient"
	"github.com/pkg/errors"
)

const (
	// CreateBlockMethod asks a manual seal node to author one block.
	CreateBlockMethod = "engine_createBlock"

	// FinalizeBlockMethod asks a manual seal node to finalize a block.
	FinalizeBlockMethod = "engine_finalizeBlock"

	// DefaultSettleDelay is slept after a waiting block production.
	DefaultSettleDelay = 500 * time.Millisecond
)

// Sender issues a raw JSON-RPC call.  *rpcclient.Client implements it.
type Sender interface {
	Send(ctx context.Context, method string, params ...interface{}) (*rpcclient.Response, error)
}

// UnexpectedResultError is returned when the node answered a seal call
// without a usable result.
type UnexpectedResultError struct {
	Method   string
	Response *rpcclient.Response
}

func (e *UnexpectedResultError) Error() string {
	return fmt.Sprintf("Unexpected result: %s", e.Response)
}

// ImportedAux is the import outcome reported for a created block.
type ImportedAux struct {
	HeaderOnly                 bool `json:"headerOnly"`
	ClearJustificationRequests bool `json:"clearJustificationRequests"`
	NeedsJustification         bool `json:"needsJustification"`
	BadJustification           bool `json:"badJustification"`
	IsNewBest                  bool `json:"isNewBest"`
}

// CreatedBlock is the result of engine_createBlock.
type CreatedBlock struct {
	Hash string      `json:"hash"`
	Aux  ImportedAux `json:"aux"`
}

// Sealer triggers block production on a manual seal node.  Calls are not
// queued: overlapping calls produce blocks in an undefined order.
type Sealer struct {
	client Sender

	// settleDelay is an empirical pause for side effects inside the node
	// that the seal response does not cover.  It is not a synchronization
	// guarantee.
	settleDelay time.Duration
}

// New returns a Sealer sending its calls through client.  A negative
// settleDelay selects DefaultSettleDelay.
func New(client Sender, settleDelay time.Duration) *Sealer {
	if settleDelay < 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Sealer{
		client:      client,
		settleDelay: settleDelay,
	}
}

// SettleDelay returns the pause applied by waiting productions.
func (s *Sealer) SettleDelay() time.Duration {
	return s.settleDelay
}

// CreateBlock authors one block including every transaction executed since
// the last one and finalizes it when finalize is set.  It returns as soon as
// the node answers.
func (s *Sealer) CreateBlock(ctx context.Context, finalize bool) (*CreatedBlock, error) {
	// The trailing null is the parent hash, which is always left to the
	// node.
	resp, err := s.client.Send(ctx, CreateBlockMethod, true, finalize, nil)
	if err != nil {
		return nil, err
	}
	if !truthy(resp) {
		return nil, &UnexpectedResultError{Method: CreateBlockMethod, Response: resp}
	}

	block := new(CreatedBlock)
	if err := json.Unmarshal(resp.Result, block); err != nil {
		// Nodes may answer with a bare truthy value instead of the
		// created block.
		log.Debugf("Unable to decode %s result %s: %v", CreateBlockMethod,
			resp.Result, err)
		block = &CreatedBlock{}
	}

	log.Debugf("Created block %s (finalize=%v)", block.Hash, finalize)

	return block, nil
}

// ProduceBlock creates a block and, when wait is set, pauses for the settle
// delay before returning.
func (s *Sealer) ProduceBlock(ctx context.Context, finalize, wait bool) (*CreatedBlock, error) {
	block, err := s.CreateBlock(ctx, finalize)
	if err != nil {
		return nil, err
	}
	if !wait || s.settleDelay == 0 {
		return block, nil
	}

	timer := time.NewTimer(s.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return block, nil
	case <-ctx.Done():
		return block, errors.Wrap(ctx.Err(), "interrupted while settling")
	}
}

// ProduceBlockNoWait creates and finalizes a block without the settle
// delay, for callers that poll the node state themselves.
func (s *Sealer) ProduceBlockNoWait(ctx context.Context) (*CreatedBlock, error) {
	return s.ProduceBlock(ctx, true, false)
}

// FinalizeBlock finalizes a block previously created without finalization.
func (s *Sealer) FinalizeBlock(ctx context.Context, hash string) error {
	if hash == "" {
		return errors.New("block hash is empty")
	}

	resp, err := s.client.Send(ctx, FinalizeBlockMethod, hash, nil)
	if err != nil {
		return err
	}
	if !truthy(resp) {
		return &UnexpectedResultError{Method: FinalizeBlockMethod, Response: resp}
	}

	log.Debugf("Finalized block %s", hash)

	return nil
}

var falsyResults = [][]byte{
	[]byte("null"),
	[]byte("false"),
	[]byte("0"),
	[]byte(`""`),
}

// truthy reports whether the response carries a result that is neither
// missing nor a falsy JSON value.
func truthy(resp *rpcclient.Response) bool {
	if resp == nil || resp.Error != nil {
		return false
	}
	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 {
		return false
	}
	for _, falsy := range falsyResults {
		if bytes.Equal(result, falsy) {
			return false
		}
	}
	return true
}
