package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/chainduel/backend/internal/apperr"
)

// escrowABI covers the read surface the reconciler needs.
const escrowABI = `[
  {"name":"gameOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"gameId","type":"bytes32"}],
   "outputs":[
     {"name":"player1","type":"address"},{"name":"stake1","type":"uint256"},{"name":"move1","type":"uint8"},
     {"name":"player2","type":"address"},{"name":"stake2","type":"uint256"},{"name":"move2","type":"uint8"},
     {"name":"joined","type":"uint8"},{"name":"resolved","type":"bool"},
     {"name":"winner","type":"address"},{"name":"feeTaken","type":"uint256"}]},
  {"name":"feePool","type":"function","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const callTimeout = 5 * time.Second

// Client reads escrow state from a deployed contract over JSON-RPC.
type Client struct {
	ec   *ethclient.Client
	abi  abi.ABI
	addr common.Address
}

// Dial connects to the given RPC endpoint and binds the escrow contract.
func Dial(rpcURL, contractAddr string) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow ABI: %w", err)
	}
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain RPC: %w", err)
	}
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("invalid escrow address %q", contractAddr)
	}
	return &Client{ec: ec, abi: parsed, addr: common.HexToAddress(contractAddr)}, nil
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	out, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		return nil, apperr.Unavailable("chain call "+method, err)
	}
	vals, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// GameOf fetches the escrow record for a game id.
func (c *Client) GameOf(ctx context.Context, gameID common.Hash) (*EscrowGame, error) {
	vals, err := c.call(ctx, "gameOf", gameID)
	if err != nil {
		return nil, err
	}
	if len(vals) != 10 {
		return nil, fmt.Errorf("gameOf: unexpected output arity %d", len(vals))
	}
	g := &EscrowGame{
		Participants: [2]Participant{
			{Addr: vals[0].(common.Address), Stake: vals[1].(*big.Int), Move: vals[2].(uint8)},
			{Addr: vals[3].(common.Address), Stake: vals[4].(*big.Int), Move: vals[5].(uint8)},
		},
		Joined:   int(vals[6].(uint8)),
		Resolved: vals[7].(bool),
		Winner:   vals[8].(common.Address),
		FeeTaken: vals[9].(*big.Int),
	}
	return g, nil
}

// FeePool returns the accumulated protocol fee balance.
func (c *Client) FeePool(ctx context.Context) (*big.Int, error) {
	vals, err := c.call(ctx, "feePool")
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("feePool: unexpected output arity %d", len(vals))
	}
	return vals[0].(*big.Int), nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}
