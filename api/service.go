// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes a wallet, its inbox and its allow-list over JSON-RPC.
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/rpc/v2"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/msig/inbox"
	"github.com/luxfi/msig/message"
	"github.com/luxfi/msig/relay"
	"github.com/luxfi/msig/utils/json"
	"github.com/luxfi/msig/wallet"
)

// Service implements the msig.* JSON-RPC methods.
type Service struct {
	log        log.Logger
	wallet     *wallet.Wallet
	dispatcher *inbox.Dispatcher
	allowlist  *relay.Allowlist
}

type Config struct {
	Log        log.Logger
	Wallet     *wallet.Wallet
	Dispatcher *inbox.Dispatcher
	Allowlist  *relay.Allowlist
}

// NewService returns an http.Handler serving the msig API.
func NewService(config Config) (http.Handler, error) {
	server := rpc.NewServer()
	codec := json.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	svc := &Service{
		log:        config.Log,
		wallet:     config.Wallet,
		dispatcher: config.Dispatcher,
		allowlist:  config.Allowlist,
	}
	if svc.log == nil {
		svc.log = log.NoLog{}
	}
	return server, server.RegisterService(svc, "msig")
}

// Transaction is the wire form of a ledger transaction. Numeric fields are
// string-quoted.
type Transaction struct {
	ID            json.Uint64 `json:"id"`
	To            string      `json:"to"`
	Token         string      `json:"token"`
	Chain         string      `json:"chain"`
	Amount        json.Uint64 `json:"amount"`
	Data          []byte      `json:"data"`
	AutoExecute   bool        `json:"autoExecute"`
	FeeCurrency   string      `json:"feeCurrency"`
	GasLimit      json.Uint64 `json:"gasLimit"`
	Proposer      string      `json:"proposer"`
	CreatedAt     json.Uint64 `json:"createdAt"`
	Confirmations json.Uint32 `json:"confirmations"`
	Executed      bool        `json:"executed"`
	ExecutedAt    json.Uint64 `json:"executedAt"`
}

func newTransaction(tx *wallet.Transaction) Transaction {
	return Transaction{
		ID:            json.Uint64(tx.ID),
		To:            tx.To.String(),
		Token:         tx.Token.String(),
		Chain:         tx.Chain.String(),
		Amount:        json.Uint64(tx.Amount),
		Data:          tx.Data,
		AutoExecute:   tx.AutoExecute,
		FeeCurrency:   tx.FeeCurrency.String(),
		GasLimit:      json.Uint64(tx.GasLimit),
		Proposer:      tx.Proposer.String(),
		CreatedAt:     json.Uint64(tx.CreatedAt),
		Confirmations: json.Uint32(tx.Confirmations),
		Executed:      tx.Executed,
		ExecutedAt:    json.Uint64(tx.ExecutedAt),
	}
}

type SubmitTransactionArgs struct {
	Sender      string      `json:"sender"`
	To          string      `json:"to"`
	Token       string      `json:"token"`
	Chain       string      `json:"chain"`
	Amount      json.Uint64 `json:"amount"`
	Data        []byte      `json:"data"`
	AutoExecute bool        `json:"autoExecute"`
	FeeCurrency string      `json:"feeCurrency"`
	GasLimit    json.Uint64 `json:"gasLimit"`
}

type SubmitTransactionReply struct {
	TxID json.Uint64 `json:"txID"`
}

// SubmitTransaction proposes a new transaction on the ledger.
func (s *Service) SubmitTransaction(_ *http.Request, args *SubmitTransactionArgs, reply *SubmitTransactionReply) error {
	s.log.Debug("API called",
		log.String("service", "msig"),
		log.String("method", "submitTransaction"),
	)

	sender, err := ids.ShortFromString(args.Sender)
	if err != nil {
		return fmt.Errorf("couldn't parse sender: %w", err)
	}
	to, err := ids.ShortFromString(args.To)
	if err != nil {
		return fmt.Errorf("couldn't parse recipient: %w", err)
	}
	token, err := parseOptionalID(args.Token)
	if err != nil {
		return fmt.Errorf("couldn't parse token: %w", err)
	}
	chain, err := parseOptionalID(args.Chain)
	if err != nil {
		return fmt.Errorf("couldn't parse chain: %w", err)
	}
	feeCurrency, err := parseFeeCurrency(args.FeeCurrency)
	if err != nil {
		return err
	}

	intent, err := message.NewSubmit(
		sender,
		to,
		token,
		chain,
		uint64(args.Amount),
		args.Data,
		args.AutoExecute,
		feeCurrency,
		uint64(args.GasLimit),
	)
	if err != nil {
		return err
	}

	txID, err := s.wallet.Submit(intent)
	if err != nil {
		return err
	}
	reply.TxID = json.Uint64(txID)
	return nil
}

type TxActionArgs struct {
	TxID   json.Uint64 `json:"txID"`
	Sender string      `json:"sender"`
}

type ConfirmTransactionReply struct {
	Confirmations json.Uint32 `json:"confirmations"`
	Executed      bool        `json:"executed"`
}

// ConfirmTransaction records the sender's approval. If the transaction was
// submitted with autoExecute and the threshold is now met, it also executes.
func (s *Service) ConfirmTransaction(r *http.Request, args *TxActionArgs, reply *ConfirmTransactionReply) error {
	s.log.Debug("API called",
		log.String("service", "msig"),
		log.String("method", "confirmTransaction"),
	)

	sender, err := ids.ShortFromString(args.Sender)
	if err != nil {
		return fmt.Errorf("couldn't parse sender: %w", err)
	}
	if err := s.wallet.Confirm(r.Context(), uint64(args.TxID), sender); err != nil {
		return err
	}

	tx, err := s.wallet.GetTransaction(uint64(args.TxID))
	if err != nil {
		return err
	}
	reply.Confirmations = json.Uint32(tx.Confirmations)
	reply.Executed = tx.Executed
	return nil
}

type RevokeConfirmationReply struct {
	Confirmations json.Uint32 `json:"confirmations"`
}

// RevokeConfirmation withdraws the sender's prior approval.
func (s *Service) RevokeConfirmation(_ *http.Request, args *TxActionArgs, reply *RevokeConfirmationReply) error {
	s.log.Debug("API called",
		log.String("service", "msig"),
		log.String("method", "revokeConfirmation"),
	)

	sender, err := ids.ShortFromString(args.Sender)
	if err != nil {
		return fmt.Errorf("couldn't parse sender: %w", err)
	}
	if err := s.wallet.Revoke(uint64(args.TxID), sender); err != nil {
		return err
	}

	tx, err := s.wallet.GetTransaction(uint64(args.TxID))
	if err != nil {
		return err
	}
	reply.Confirmations = json.Uint32(tx.Confirmations)
	return nil
}

type ExecuteTransactionReply struct {
	Executed bool `json:"executed"`
}

// ExecuteTransaction settles a transaction that already reached quorum.
func (s *Service) ExecuteTransaction(r *http.Request, args *TxActionArgs, reply *ExecuteTransactionReply) error {
	s.log.Debug("API called",
		log.String("service", "msig"),
		log.String("method", "executeTransaction"),
	)

	sender, err := ids.ShortFromString(args.Sender)
	if err != nil {
		return fmt.Errorf("couldn't parse sender: %w", err)
	}
	if err := s.wallet.Execute(r.Context(), uint64(args.TxID), sender); err != nil {
		return err
	}
	reply.Executed = true
	return nil
}

type GetTransactionArgs struct {
	TxID json.Uint64 `json:"txID"`
}

type GetTransactionReply struct {
	Transaction Transaction `json:"transaction"`
}

func (s *Service) GetTransaction(_ *http.Request, args *GetTransactionArgs, reply *GetTransactionReply) error {
	tx, err := s.wallet.GetTransaction(uint64(args.TxID))
	if err != nil {
		return err
	}
	reply.Transaction = newTransaction(tx)
	return nil
}

type ListTransactionsReply struct {
	Transactions []Transaction `json:"transactions"`
}

func (s *Service) ListTransactions(_ *http.Request, _ *struct{}, reply *ListTransactionsReply) error {
	txs := s.wallet.Transactions()
	reply.Transactions = make([]Transaction, len(txs))
	for i, tx := range txs {
		reply.Transactions[i] = newTransaction(tx)
	}
	return nil
}

type GetOwnersReply struct {
	Addresses []string    `json:"addresses"`
	Threshold json.Uint32 `json:"threshold"`
}

func (s *Service) GetOwners(_ *http.Request, _ *struct{}, reply *GetOwnersReply) error {
	addrs := s.wallet.Owners()
	reply.Addresses = make([]string, len(addrs))
	for i, addr := range addrs {
		reply.Addresses[i] = addr.String()
	}
	reply.Threshold = json.Uint32(s.wallet.Threshold())
	return nil
}

type IsConfirmedArgs struct {
	TxID  json.Uint64 `json:"txID"`
	Owner string      `json:"owner"`
}

type IsConfirmedReply struct {
	Confirmed bool `json:"confirmed"`
}

func (s *Service) IsConfirmed(_ *http.Request, args *IsConfirmedArgs, reply *IsConfirmedReply) error {
	owner, err := ids.ShortFromString(args.Owner)
	if err != nil {
		return fmt.Errorf("couldn't parse owner: %w", err)
	}
	confirmed, err := s.wallet.IsConfirmedBy(uint64(args.TxID), owner)
	if err != nil {
		return err
	}
	reply.Confirmed = confirmed
	return nil
}

type PendingMessagesReply struct {
	MessageIDs []string `json:"messageIDs"`
}

// PendingMessages lists quarantined inbound messages awaiting recovery.
func (s *Service) PendingMessages(_ *http.Request, _ *struct{}, reply *PendingMessagesReply) error {
	messageIDs, err := s.dispatcher.Pending()
	if err != nil {
		return err
	}
	reply.MessageIDs = make([]string, len(messageIDs))
	for i, messageID := range messageIDs {
		reply.MessageIDs[i] = messageID.String()
	}
	return nil
}

type RecoverMessageArgs struct {
	MessageID string `json:"messageID"`
	Recipient string `json:"recipient"`
	Caller    string `json:"caller"`
}

type RecoverMessageReply struct {
	Recovered bool `json:"recovered"`
}

// RecoverMessage releases the asset held by a quarantined message to the
// given recipient.
func (s *Service) RecoverMessage(_ *http.Request, args *RecoverMessageArgs, reply *RecoverMessageReply) error {
	s.log.Debug("API called",
		log.String("service", "msig"),
		log.String("method", "recoverMessage"),
		log.String("messageID", args.MessageID),
	)

	messageID, err := ids.FromString(args.MessageID)
	if err != nil {
		return fmt.Errorf("couldn't parse messageID: %w", err)
	}
	recipient, err := ids.ShortFromString(args.Recipient)
	if err != nil {
		return fmt.Errorf("couldn't parse recipient: %w", err)
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}

	if err := s.dispatcher.Recover(messageID, recipient, caller); err != nil {
		return err
	}
	reply.Recovered = true
	return nil
}

type SetChainAllowedArgs struct {
	Chain   string `json:"chain"`
	Allowed bool   `json:"allowed"`
	Caller  string `json:"caller"`
}

type SetChainAllowedReply struct {
	Allowed bool `json:"allowed"`
}

// SetChainAllowed updates the destination allow-list. Admin only.
func (s *Service) SetChainAllowed(_ *http.Request, args *SetChainAllowedArgs, reply *SetChainAllowedReply) error {
	s.log.Debug("API called",
		log.String("service", "msig"),
		log.String("method", "setChainAllowed"),
		log.String("chain", args.Chain),
		log.Bool("allowed", args.Allowed),
	)

	chain, err := ids.FromString(args.Chain)
	if err != nil {
		return fmt.Errorf("couldn't parse chain: %w", err)
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}

	if err := s.allowlist.SetAllowed(chain, args.Allowed, caller); err != nil {
		return err
	}
	reply.Allowed = args.Allowed
	return nil
}

type ListAllowedChainsReply struct {
	Chains []string `json:"chains"`
}

func (s *Service) ListAllowedChains(_ *http.Request, _ *struct{}, reply *ListAllowedChainsReply) error {
	chains := s.allowlist.List()
	reply.Chains = make([]string, len(chains))
	for i, chain := range chains {
		reply.Chains[i] = chain.String()
	}
	return nil
}

func parseOptionalID(s string) (ids.ID, error) {
	if s == "" {
		return ids.Empty, nil
	}
	return ids.FromString(s)
}

func parseFeeCurrency(s string) (message.FeeCurrency, error) {
	switch strings.ToLower(s) {
	case "", "native":
		return message.FeeNative, nil
	case "token":
		return message.FeeToken, nil
	default:
		return 0, fmt.Errorf("%w: %q", message.ErrBadFeeCurrency, s)
	}
}
