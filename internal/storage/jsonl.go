package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"swapledger/internal/model"
)

// ErrAuditChain is returned when an audit log fails verification.
var ErrAuditChain = errors.New("audit chain broken")

var genesisHash = common.Hash{}.Hex()

// AuditRecord is one line of the audit log. Every Emit call is one commit of
// Count records; Hash chains each record to the one before it.
type AuditRecord struct {
	Seq      uint64      `json:"seq"`
	Commit   uint64      `json:"commit"`
	Index    int         `json:"index"`
	Count    int         `json:"count"`
	PrevHash string      `json:"prev_hash"`
	Hash     string      `json:"hash"`
	Event    model.Event `json:"event"`
}

func (r AuditRecord) digest() (string, error) {
	payload, err := json.Marshal(r.Event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	header := fmt.Sprintf("%d:%d:%d:%d", r.Seq, r.Commit, r.Index, r.Count)
	return crypto.Keccak256Hash([]byte(r.PrevHash), []byte(header), payload).Hex(), nil
}

// AuditTip is the end of the last complete commit of an audit log.
type AuditTip struct {
	Seq    uint64
	Commit uint64
	Hash   string
	Offset int64
}

// AuditLog appends events to a hash-chained JSONL file. Each Emit is written
// in one append and synced before it returns.
type AuditLog struct {
	path string

	mu      sync.Mutex
	tip     AuditTip
	resumed bool
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Emit appends events as one commit.
func (s *AuditLog) Emit(_ context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resumed {
		if err := s.resume(); err != nil {
			return err
		}
		s.resumed = true
	}

	var buf bytes.Buffer
	tip := s.tip
	tip.Commit++
	for i, event := range events {
		rec := AuditRecord{
			Seq:      tip.Seq + 1,
			Commit:   tip.Commit,
			Index:    i,
			Count:    len(events),
			PrevHash: tip.Hash,
			Event:    event,
		}
		var err error
		if rec.Hash, err = rec.digest(); err != nil {
			return err
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		tip.Seq, tip.Hash = rec.Seq, rec.Hash
	}

	if err := s.append(buf.Bytes()); err != nil {
		// The file may end in a partial commit; verify and cut it on the next call.
		s.resumed = false
		return err
	}
	tip.Offset += int64(buf.Len())
	s.tip = tip
	return nil
}

func (s *AuditLog) append(data []byte) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("write commit: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync output: %w", err)
	}
	return file.Close()
}

// resume picks up the chain from the existing file and cuts a torn tail.
func (s *AuditLog) resume() error {
	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.tip = AuditTip{Hash: genesisHash}
		return nil
	}
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	_, tip, err := VerifyAuditLog(file)
	file.Close()
	if err != nil {
		return err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat output file: %w", err)
	}
	if info.Size() > tip.Offset {
		if err := os.Truncate(s.path, tip.Offset); err != nil {
			return fmt.Errorf("cut torn commit: %w", err)
		}
	}
	s.tip = tip
	return nil
}

// ReadAuditLog verifies the audit log at path and returns its complete commits.
func ReadAuditLog(path string) ([]AuditRecord, AuditTip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, AuditTip{}, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()
	return VerifyAuditLog(file)
}

// VerifyAuditLog checks sequence numbers, commit framing and the hash chain.
// A commit left incomplete at the end of the input is dropped, any other
// inconsistency fails with ErrAuditChain.
func VerifyAuditLog(r io.Reader) ([]AuditRecord, AuditTip, error) {
	reader := bufio.NewReader(r)
	tip := AuditTip{Hash: genesisHash}
	cur := tip

	var (
		records []AuditRecord
		pending []AuditRecord
		offset  int64
		line    int
	)
	for {
		raw, err := reader.ReadBytes('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, AuditTip{}, fmt.Errorf("read audit log: %w", err)
		}
		line++
		offset += int64(len(raw))

		var rec AuditRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, AuditTip{}, fmt.Errorf("%w: line %d: %v", ErrAuditChain, line, err)
		}
		if rec.Seq != cur.Seq+1 || rec.PrevHash != cur.Hash {
			return nil, AuditTip{}, fmt.Errorf("%w: line %d out of sequence", ErrAuditChain, line)
		}
		if len(pending) == 0 {
			if rec.Index != 0 || rec.Count < 1 || rec.Commit != tip.Commit+1 {
				return nil, AuditTip{}, fmt.Errorf("%w: line %d does not open commit %d", ErrAuditChain, line, tip.Commit+1)
			}
		} else if rec.Commit != pending[0].Commit || rec.Count != pending[0].Count || rec.Index != len(pending) {
			return nil, AuditTip{}, fmt.Errorf("%w: line %d interrupts commit %d", ErrAuditChain, line, pending[0].Commit)
		}
		want, err := rec.digest()
		if err != nil {
			return nil, AuditTip{}, err
		}
		if want != rec.Hash {
			return nil, AuditTip{}, fmt.Errorf("%w: line %d hash mismatch", ErrAuditChain, line)
		}

		pending = append(pending, rec)
		cur.Seq, cur.Hash = rec.Seq, rec.Hash
		if len(pending) == rec.Count {
			records = append(records, pending...)
			pending = nil
			tip = AuditTip{Seq: cur.Seq, Commit: rec.Commit, Hash: cur.Hash, Offset: offset}
		}
	}
	return records, tip, nil
}
