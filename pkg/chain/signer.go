package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidPrivateKey = errors.New("invalid private key")

// NativeTransferGas is the fixed gas limit of a plain value transfer.
const NativeTransferGas = 21000

// TxRequest describes a legacy transaction. Zero GasLimit means estimate,
// nil GasPrice means suggest, nil Nonce means the pending nonce.
type TxRequest struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
	Nonce    *uint64
}

// Signer holds a parsed key. SignAndSend is serialized per Signer so two
// concurrent sends never read the same pending nonce.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int

	mu sync.Mutex
}

// NewSigner parses a 0x-prefixed or bare hex key.
func NewSigner(hexKey string, chainID uint64) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		// The parse error can echo key material.
		return nil, ErrInvalidPrivateKey
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).SetUint64(chainID),
	}, nil
}

// AddressFromKey derives the account of a hex key.
func AddressFromKey(hexKey string) (common.Address, error) {
	s, err := NewSigner(hexKey, 0)
	if err != nil {
		return common.Address{}, err
	}
	return s.address, nil
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// PendingNonce reads the next nonce for the signer's account.
func (s *Signer) PendingNonce(ctx context.Context, c Client) (uint64, error) {
	n, err := c.PendingNonceAt(ctx, s.address)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending nonce: %w", err)
	}
	return n, nil
}

// SignAndSend fills the missing fields of req, signs with EIP-155 and
// broadcasts. It returns once the node accepted the transaction.
func (s *Signer) SignAndSend(ctx context.Context, c Client, req TxRequest) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else {
		n, err := s.PendingNonce(ctx, c)
		if err != nil {
			return nil, err
		}
		nonce = n
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		p, err := c.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		gasPrice = p
	}

	gas := req.GasLimit
	if gas == 0 {
		to := req.To
		g, err := c.EstimateGas(ctx, ethereum.CallMsg{
			From:     s.address,
			To:       &to,
			GasPrice: gasPrice,
			Value:    value,
			Data:     req.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gas = g
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return signed, nil
}
