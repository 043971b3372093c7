package liqsim

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// probe values chosen to be recognizable and to fit a 32-bit window
const (
	probeMark   = uint64(0xBEEF0001)
	probeOracle = uint64(0xBEEF0002)
	probeTs     = uint64(0xBEEF0003)
)

// discoverPriceWord finds the storage slot holding the packed price
// word, then the bit offsets of its fields. Discovery is write-and-read:
// a candidate is confirmed when mutating it changes what
// getPerpetualInfo reports. Every probe is wrapped in a snapshot/revert
// pair.
func (s *Simulator) discoverPriceWord(ctx context.Context, fork forkRPC, reader chainReader, perpId int64) (common.Hash, fieldOffsets, error) {
	var none fieldOffsets

	calldata, err := reader.PerpetualInfoCalldata(perpId)
	if err != nil {
		return common.Hash{}, none, err
	}
	slots, err := fork.TraceCallSlots(ctx, s.exchange, calldata)
	if err != nil {
		return common.Hash{}, none, fmt.Errorf("%w: %v", ErrSlotDiscovery, err)
	}
	if len(slots) == 0 {
		return common.Hash{}, none, fmt.Errorf("%w: trace read no storage", ErrSlotDiscovery)
	}

	baseline, err := reader.GetPerpetualInfo(ctx, perpId)
	if err != nil {
		return common.Hash{}, none, err
	}

	priceSlot := common.Hash{}
	found := false
	for _, slot := range slots {
		changed, err := s.zeroProbeChangesMark(ctx, fork, reader, perpId, slot, baseline.MarkPNS)
		if err != nil {
			return common.Hash{}, none, err
		}
		if changed {
			priceSlot = slot
			found = true
			break
		}
	}
	if !found {
		return common.Hash{}, none, fmt.Errorf("%w: no slot affects markPNS", ErrSlotDiscovery)
	}

	offsets, err := s.probeOffsets(ctx, fork, reader, perpId, priceSlot)
	if err != nil {
		return common.Hash{}, none, err
	}
	return priceSlot, offsets, nil
}

func (s *Simulator) zeroProbeChangesMark(ctx context.Context, fork forkRPC, reader chainReader, perpId int64, slot common.Hash, baselineMark *big.Int) (changed bool, err error) {
	snapId, err := fork.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if rerr := fork.Revert(ctx, snapId); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err := fork.SetStorageAt(ctx, s.exchange, slot, new(big.Int)); err != nil {
		return false, err
	}
	perp, err := reader.GetPerpetualInfo(ctx, perpId)
	if err != nil {
		// zeroing an unrelated slot may make the call revert; that slot
		// is not the price word
		return false, nil
	}
	return perp.MarkPNS.Cmp(baselineMark) != 0, nil
}

// probeOffsets locates markPNS, oraclePNS and markTs inside the packed
// word by writing a distinctive value into each 32-bit window and
// checking which reported field picks it up. oracleTs has no direct
// read-back; it is placed heuristically next to markTs and filtered by
// wall-clock plausibility.
func (s *Simulator) probeOffsets(ctx context.Context, fork forkRPC, reader chainReader, perpId int64, slot common.Hash) (fieldOffsets, error) {
	offsets := fieldOffsets{mark: -1, oracle: -1, markTs: -1, oracleTs: -1}

	word, err := fork.GetStorageAt(ctx, s.exchange, slot)
	if err != nil {
		return offsets, err
	}

	type fieldTarget struct {
		name  string
		probe uint64
		match func(p *perpFields) uint64
		store func(off int)
	}
	targets := []fieldTarget{
		{"markPNS", probeMark, func(p *perpFields) uint64 { return p.mark }, func(off int) { offsets.mark = off }},
		{"oraclePNS", probeOracle, func(p *perpFields) uint64 { return p.oracle }, func(off int) { offsets.oracle = off }},
		{"markTs", probeTs, func(p *perpFields) uint64 { return p.markTs }, func(off int) { offsets.markTs = off }},
	}

	for _, target := range targets {
		for off := 0; off+fieldWidthBits <= wordBits; off += probeStride {
			hit, err := s.offsetProbe(ctx, fork, reader, perpId, slot, word, uint(off), target.probe, target.match)
			if err != nil {
				return offsets, err
			}
			if hit {
				target.store(off)
				break
			}
		}
	}
	if offsets.mark < 0 {
		return offsets, fmt.Errorf("%w: markPNS offset not found", ErrSlotDiscovery)
	}

	// oracleTs: a timestamp-plausible window at ±32 or ±64 bits from
	// markTs
	if offsets.markTs >= 0 {
		now := time.Now().Unix()
		year := int64(365 * 24 * 3600)
		for _, delta := range []int{32, -32, 64, -64} {
			off := offsets.markTs + delta
			if off < 0 || off+fieldWidthBits > wordBits || off == offsets.mark || off == offsets.oracle {
				continue
			}
			v := int64(ExtractField(word, uint(off)))
			if v > now-year && v < now+year {
				offsets.oracleTs = off
				break
			}
		}
	}
	return offsets, nil
}

// perpFields are the packed-word fields as reported by getPerpetualInfo.
type perpFields struct {
	mark, oracle, markTs uint64
}

func (s *Simulator) offsetProbe(ctx context.Context, fork forkRPC, reader chainReader, perpId int64, slot common.Hash, word *big.Int, off uint, probe uint64, match func(*perpFields) uint64) (hit bool, err error) {
	snapId, err := fork.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if rerr := fork.Revert(ctx, snapId); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err := fork.SetStorageAt(ctx, s.exchange, slot, WriteField(word, off, probe)); err != nil {
		return false, err
	}
	perp, err := reader.GetPerpetualInfo(ctx, perpId)
	if err != nil {
		return false, nil
	}
	fields := &perpFields{
		mark:   perp.MarkPNS.Uint64(),
		oracle: perp.OraclePNS.Uint64(),
		markTs: uint64(perp.MarkTs),
	}
	return match(fields) == probe, nil
}

// writePrice commits a new mark (and oracle) price: one read-modify-
// write of the packed word, timestamps refreshed to wall-clock so
// staleness checks pass.
func (s *Simulator) writePrice(ctx context.Context, fork forkRPC, slot common.Hash, offsets fieldOffsets, pricePNS *big.Int) error {
	if !pricePNS.IsUint64() || pricePNS.Uint64() > 0xFFFFFFFF {
		return fmt.Errorf("%w: price %v exceeds the 32-bit window", ErrPriceVerification, pricePNS)
	}
	word, err := fork.GetStorageAt(ctx, s.exchange, slot)
	if err != nil {
		return err
	}
	price := pricePNS.Uint64()
	now := uint64(time.Now().Unix())

	word = WriteField(word, uint(offsets.mark), price)
	if offsets.oracle >= 0 && offsets.oracle != offsets.mark {
		word = WriteField(word, uint(offsets.oracle), price)
	}
	if offsets.markTs >= 0 {
		word = WriteField(word, uint(offsets.markTs), now)
	}
	if offsets.oracleTs >= 0 {
		word = WriteField(word, uint(offsets.oracleTs), now)
	}
	return fork.SetStorageAt(ctx, s.exchange, slot, word)
}
