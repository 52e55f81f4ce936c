package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/luca-patrignani/energy-ledger/ledger"
)

const (
	blockPrefix  = "block_"
	hashPrefix   = "hash_"
	partyPrefix  = "party_"
	heightLatest = "height_latest"
)

// LevelStore indexes sealed blocks in an in-memory LevelDB.
//
// Keys:
//   - block_<index>: block JSON
//   - hash_<digest>: block index
//   - party_<hex party>_<index>_<position>: transaction JSON, one per side
//   - height_latest: highest stored index
type LevelStore struct {
	// writeMu serialises the height read-modify-write in PutBlock.
	writeMu sync.Mutex
	db      *leveldb.DB
	logger  *slog.Logger
}

var _ ledger.BlockStore = (*LevelStore)(nil)

// NewMemory opens a LevelStore that lives only as long as the process.
func NewMemory(logger *slog.Logger) (*LevelStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory leveldb: %w", err)
	}
	return &LevelStore{db: db, logger: logger}, nil
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

func indexKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockPrefix, index))
}

func hashKey(hash string) []byte {
	return []byte(hashPrefix + hash)
}

func partyKeyPrefix(p ledger.Party) []byte {
	return []byte(partyPrefix + hex.EncodeToString([]byte(p)) + "_")
}

// PutBlock writes the block and its hash, party and height entries in one batch.
func (s *LevelStore) PutBlock(b ledger.Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding block %d: %w", b.Index, err)
	}
	batch := new(leveldb.Batch)
	batch.Put(indexKey(b.Index), data)
	batch.Put(hashKey(b.Hash), []byte(strconv.FormatUint(b.Index, 10)))
	for pos, tx := range b.Transactions {
		txData, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("encoding transaction %d of block %d: %w", pos, b.Index, err)
		}
		suffix := fmt.Sprintf("%020d_%06d", b.Index, pos)
		batch.Put(append(partyKeyPrefix(tx.From), suffix...), txData)
		if tx.To != tx.From {
			batch.Put(append(partyKeyPrefix(tx.To), suffix...), txData)
		}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	height, ok, err := s.Height()
	if err != nil {
		return err
	}
	if !ok || b.Index > height {
		batch.Put([]byte(heightLatest), []byte(strconv.FormatUint(b.Index, 10)))
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("writing block %d: %w", b.Index, err)
	}
	s.logger.Debug("block stored", "index", b.Index, "hash", b.Hash)
	return nil
}

// BlockByIndex returns the block stored at index.
func (s *LevelStore) BlockByIndex(index uint64) (ledger.Block, error) {
	data, err := s.db.Get(indexKey(index), nil)
	if err != nil {
		return ledger.Block{}, notFound(err, "index %d", index)
	}
	var b ledger.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return ledger.Block{}, fmt.Errorf("decoding block %d: %w", index, err)
	}
	return b, nil
}

// BlockByHash resolves the digest to an index and loads that block.
func (s *LevelStore) BlockByHash(hash string) (ledger.Block, error) {
	data, err := s.db.Get(hashKey(hash), nil)
	if err != nil {
		return ledger.Block{}, notFound(err, "hash %s", hash)
	}
	index, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return ledger.Block{}, fmt.Errorf("corrupt hash entry for %s: %w", hash, err)
	}
	return s.BlockByIndex(index)
}

// Height returns the highest stored block index; ok is false when the store
// is empty.
func (s *LevelStore) Height() (height uint64, ok bool, err error) {
	data, err := s.db.Get([]byte(heightLatest), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading height: %w", err)
	}
	height, err = strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt height entry: %w", err)
	}
	return height, true, nil
}

// TransactionsFor returns every stored transaction sent or received by p in
// chain order.
func (s *LevelStore) TransactionsFor(p ledger.Party) ([]ledger.Transaction, error) {
	iter := s.db.NewIterator(util.BytesPrefix(partyKeyPrefix(p)), nil)
	defer iter.Release()

	var txs []ledger.Transaction
	for iter.Next() {
		var tx ledger.Transaction
		if err := json.Unmarshal(iter.Value(), &tx); err != nil {
			return nil, fmt.Errorf("decoding transaction %s: %w", iter.Key(), err)
		}
		txs = append(txs, tx)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating transactions of %s: %w", p, err)
	}
	return txs, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("%w: %s", ledger.ErrBlockNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("reading %s: %w", fmt.Sprintf(format, args...), err)
}
