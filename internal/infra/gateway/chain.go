package gateway

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/agentfaucet/faucetd/internal/domain"
)

const poolABIJSON = `[
	{"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"agentTokenId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"SponsorDeposited","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"campaignId","type":"string","indexed":false},
		{"name":"metadata","type":"string","indexed":false}]},
	{"type":"event","name":"TokenReturned","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}]}
]`

const registryABIJSON = `[
	{"type":"function","name":"register","stateMutability":"nonpayable","inputs":[
		{"name":"agentURI","type":"string"}],"outputs":[
		{"name":"agentId","type":"uint256"}]},
	{"type":"event","name":"Registered","anonymous":false,"inputs":[
		{"name":"agentId","type":"uint256","indexed":true},
		{"name":"agentURI","type":"string","indexed":false},
		{"name":"owner","type":"address","indexed":true}]}
]`

// ChainGateway is the settlement collaborator: it relays pool claims and
// identity registrations through the relayer key and verifies inbound
// deposit/return transactions. Everything past SendTransaction is the chain's
// problem; the gateway only reports confirmed receipts.
type ChainGateway struct {
	client      *ethclient.Client
	chainID     *big.Int
	relayerKey  *ecdsa.PrivateKey
	relayerAddr common.Address
	pool        common.Address
	registry    common.Address
	poolABI     abi.ABI
	registryABI abi.ABI
}

func NewChainGateway(conf domain.Config) (*ChainGateway, error) {

	client, err := ethclient.Dial(conf.RPCEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial rpc endpoint")
	}

	relayerKey, err := crypto.HexToECDSA(strings.TrimPrefix(conf.RelayerKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid relayer key")
	}

	poolABI, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "invalid pool abi")
	}

	registryABI, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "invalid registry abi")
	}

	return &ChainGateway{
		client:      client,
		chainID:     big.NewInt(conf.ChainID),
		relayerKey:  relayerKey,
		relayerAddr: crypto.PubkeyToAddress(relayerKey.PublicKey),
		pool:        common.HexToAddress(conf.PoolAddress),
		registry:    common.HexToAddress(conf.RegistryAddress),
		poolABI:     poolABI,
		registryABI: registryABI,
	}, nil
}

// Transfer submits a pool claim for (to, amountWei, agentTokenID) and waits
// for the receipt. A returned hash means the transfer is confirmed on-chain;
// any error means no durable spend is known to have happened.
func (g *ChainGateway) Transfer(ctx context.Context, to string, amountWei *big.Int, agentTokenID int64) (string, error) {

	input, err := g.poolABI.Pack("claim", common.HexToAddress(to), amountWei, big.NewInt(agentTokenID))
	if err != nil {
		return "", errors.Wrap(err, "failed to pack claim call")
	}

	receipt, err := g.submit(ctx, g.pool, input)
	if err != nil {
		return "", err
	}

	return receipt.TxHash.Hex(), nil
}

// PoolBalance reads the pool's native balance.
func (g *ChainGateway) PoolBalance(ctx context.Context) (*big.Int, error) {
	return g.client.BalanceAt(ctx, g.pool, nil)
}

// RegisterAgent registers the agent URI on the identity registry and decodes
// the Registered event for the minted agent id.
func (g *ChainGateway) RegisterAgent(ctx context.Context, agentURI string) (int64, error) {

	input, err := g.registryABI.Pack("register", agentURI)
	if err != nil {
		return 0, errors.Wrap(err, "failed to pack register call")
	}

	receipt, err := g.submit(ctx, g.registry, input)
	if err != nil {
		return 0, err
	}

	registeredID := g.registryABI.Events["Registered"].ID
	for _, log := range receipt.Logs {
		if len(log.Topics) < 2 || log.Topics[0] != registeredID {
			continue
		}
		// agentId is the first indexed argument
		return new(big.Int).SetBytes(log.Topics[1].Bytes()).Int64(), nil
	}

	return 0, fmt.Errorf("Registered event not found in receipt %s", receipt.TxHash.Hex())
}

// VerifyDeposit checks that txHash is a confirmed transaction to the pool
// carrying a SponsorDeposited event, and returns the event's sender and
// amount.
func (g *ChainGateway) VerifyDeposit(ctx context.Context, txHash string) (string, *big.Int, error) {

	receipt, tx, err := g.confirmedReceipt(ctx, txHash)
	if err != nil {
		return "", nil, err
	}

	if tx.To() == nil || *tx.To() != g.pool {
		return "", nil, domain.InvalidRequestError{Reason: "transaction is not addressed to the pool"}
	}

	depositedID := g.poolABI.Events["SponsorDeposited"].ID
	for _, log := range receipt.Logs {
		if len(log.Topics) < 2 || log.Topics[0] != depositedID {
			continue
		}

		unpacked, err := g.poolABI.Unpack("SponsorDeposited", log.Data)
		if err != nil {
			return "", nil, errors.Wrap(err, "failed to decode SponsorDeposited event")
		}
		amount, ok := unpacked[0].(*big.Int)
		if !ok {
			return "", nil, fmt.Errorf("unexpected SponsorDeposited payload")
		}

		sender := common.BytesToAddress(log.Topics[1].Bytes())
		return sender.Hex(), amount, nil
	}

	return "", nil, domain.InvalidRequestError{Reason: "SponsorDeposited event not found in transaction"}
}

// VerifyReturn checks that txHash is a confirmed transaction to the pool
// carrying a TokenReturned event, and returns the event's sender and amount.
func (g *ChainGateway) VerifyReturn(ctx context.Context, txHash string) (string, *big.Int, error) {

	receipt, tx, err := g.confirmedReceipt(ctx, txHash)
	if err != nil {
		return "", nil, err
	}

	if tx.To() == nil || *tx.To() != g.pool {
		return "", nil, domain.InvalidRequestError{Reason: "transaction is not addressed to the pool"}
	}

	returnedID := g.poolABI.Events["TokenReturned"].ID
	for _, log := range receipt.Logs {
		if len(log.Topics) < 2 || log.Topics[0] != returnedID {
			continue
		}

		unpacked, err := g.poolABI.Unpack("TokenReturned", log.Data)
		if err != nil {
			return "", nil, errors.Wrap(err, "failed to decode TokenReturned event")
		}
		amount, ok := unpacked[0].(*big.Int)
		if !ok {
			return "", nil, fmt.Errorf("unexpected TokenReturned payload")
		}

		sender := common.BytesToAddress(log.Topics[1].Bytes())
		return sender.Hex(), amount, nil
	}

	return "", nil, domain.InvalidRequestError{Reason: "TokenReturned event not found in transaction"}
}

func (g *ChainGateway) submit(ctx context.Context, to common.Address, input []byte) (*types.Receipt, error) {

	nonce, err := g.client.PendingNonceAt(ctx, g.relayerAddr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch relayer nonce")
	}

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch gas price")
	}

	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From: g.relayerAddr,
		To:   &to,
		Data: input,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate gas")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), g.relayerKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	receipt, err := bind.WaitMined(ctx, g.client, signed)
	if err != nil {
		return nil, errors.Wrap(err, "failed waiting for receipt")
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}

	return receipt, nil
}

func (g *ChainGateway) confirmedReceipt(ctx context.Context, txHash string) (*types.Receipt, *types.Transaction, error) {

	hash := common.HexToHash(txHash)

	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch transaction receipt")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, nil, domain.InvalidRequestError{Reason: "transaction failed on-chain"}
	}

	tx, _, err := g.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch transaction")
	}

	return receipt, tx, nil
}
