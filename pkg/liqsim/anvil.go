package liqsim

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
)

// Anvil owns one forked-node child process for the duration of a
// simulation. Stop must run on every exit path.
type Anvil struct {
	cmd    *exec.Cmd
	client *rpc.Client
	url    string
	logger *log.Entry
}

// StartFork launches the fork binary against forkUrl and waits until
// its RPC endpoint answers, or timeout elapses.
func StartFork(ctx context.Context, anvilPath, forkUrl string, timeout time.Duration) (*Anvil, error) {
	port := 20000 + rand.Intn(10000)
	url := fmt.Sprintf("http://127.0.0.1:%v", port)

	cmd := exec.CommandContext(ctx, anvilPath,
		"--fork-url", forkUrl,
		"--port", fmt.Sprintf("%v", port),
		"--silent",
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("fail to start anvil: %w", err)
	}

	a := &Anvil{
		cmd:    cmd,
		url:    url,
		logger: log.WithFields(log.Fields{"mod": "liqsim", "anvil": url}),
	}

	deadline := time.Now().Add(timeout)
	for {
		client, err := rpc.DialContext(ctx, url)
		if err == nil {
			var id string
			if err = client.CallContext(ctx, &id, "eth_chainId"); err == nil {
				a.client = client
				a.logger.Debugf("anvil ready, chain %v", id)
				return a, nil
			}
			client.Close()
		}
		if time.Now().After(deadline) {
			a.Stop()
			return nil, fmt.Errorf("anvil unavailable after %v: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			a.Stop()
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Stop terminates the child process. Safe to call more than once.
func (a *Anvil) Stop() {
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
	if a.cmd != nil && a.cmd.Process != nil {
		_ = a.cmd.Process.Kill()
		_ = a.cmd.Wait()
		a.cmd = nil
	}
}

func (a *Anvil) Url() string { return a.url }

// forkRPC is the slice of the fork's RPC surface the simulator uses;
// tests substitute an in-memory implementation.
type forkRPC interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, snapId string) error
	GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash) (*big.Int, error)
	SetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, value *big.Int) error
	TraceCallSlots(ctx context.Context, to common.Address, data []byte) ([]common.Hash, error)
}

func (a *Anvil) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := a.client.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("fail to snapshot fork: %w", err)
	}
	return id, nil
}

func (a *Anvil) Revert(ctx context.Context, snapId string) error {
	var ok bool
	if err := a.client.CallContext(ctx, &ok, "evm_revert", snapId); err != nil {
		return fmt.Errorf("fail to revert snapshot %v: %w", snapId, err)
	}
	if !ok {
		return fmt.Errorf("snapshot %v no longer valid", snapId)
	}
	return nil
}

func (a *Anvil) GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash) (*big.Int, error) {
	var out hexutil.Big
	if err := a.client.CallContext(ctx, &out, "eth_getStorageAt", addr, slot, "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&out), nil
}

func (a *Anvil) SetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, value *big.Int) error {
	return a.client.CallContext(ctx, nil, "anvil_setStorageAt",
		addr, slot, common.BigToHash(value))
}

// traceResult is the subset of the debug_traceCall structured-log output
// the slot discovery consumes.
type traceResult struct {
	StructLogs []struct {
		Op      string            `json:"op"`
		Storage map[string]string `json:"storage"`
	} `json:"structLogs"`
}

// TraceCallSlots traces an eth_call with storage recording enabled and
// returns the distinct storage slots read via SLOAD.
func (a *Anvil) TraceCallSlots(ctx context.Context, to common.Address, data []byte) ([]common.Hash, error) {
	call := map[string]any{
		"to":   to,
		"data": hexutil.Encode(data),
	}
	config := map[string]any{
		"disableStorage": false,
		"disableStack":   true,
		"disableMemory":  true,
	}
	var res traceResult
	if err := a.client.CallContext(ctx, &res, "debug_traceCall", call, "latest", config); err != nil {
		return nil, fmt.Errorf("fail to trace call: %w", err)
	}

	seen := make(map[common.Hash]struct{})
	var slots []common.Hash
	for _, l := range res.StructLogs {
		if l.Op != "SLOAD" {
			continue
		}
		for k := range l.Storage {
			h := common.HexToHash(k)
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			slots = append(slots, h)
		}
	}
	return slots, nil
}
