package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/signature"
)

// headerVersion is the version bound into every header hash.
const headerVersion = 1

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Version      int    `json:"version"`       // Protocol version.
	Index        uint64 `json:"index"`         // Height of the block in the chain.
	PreviousHash string `json:"previous_hash"` // Hash of the previous block in the chain.
	MerkleRoot   string `json:"merkle_root"`   // Merkle tree root hash for the transactions in this block.
	Nonce        uint64 `json:"nonce"`         // Value identified to solve the hash solution.
	Difficulty   uint   `json:"difficulty"`    // Number of leading 0's needed to solve the hash solution.
	Hash         string `json:"hash"`          // Solved header hash.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[Tx]
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Version      int
	Index        uint64
	PreviousHash string
	Difficulty   uint
	Trans        []Tx
	EvHandler    func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {

	// Construct a merkle tree from the transaction for this block. The root
	// of this tree is part of the header hash.
	tree, err := merkle.NewTree(args.Trans)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %s", ErrNoTransactions, err)
	}

	nb := Block{
		Header: BlockHeader{
			Version:      args.Version,
			Index:        args.Index,
			PreviousHash: args.PreviousHash,
			MerkleRoot:   tree.RootHex(),
			Nonce:        0, // Will be identified by the POW algorithm.
			Difficulty:   args.Difficulty,
		},
		Trans: tree,
	}

	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]", b.Header.Index)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.Header.Index)

	for _, tx := range b.Trans.Values() {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Check for cancellation every so often, hashing is cheap.
		if attempts%1_000 == 0 && ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		hash := b.headerHash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		b.Header.Hash = hash

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PreviousHash, hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// Hash returns the solved hash recorded in the header.
func (b Block) Hash() string {
	return b.Header.Hash
}

// headerHash computes the hash over the fields that bind the block. The
// index and transaction list are excluded, the merkle root carries the
// transactions. Field order is alphabetical so the encoding has sorted keys.
func (b Block) headerHash() string {
	h := struct {
		MerkleRoot   string `json:"merkle_root"`
		Nonce        uint64 `json:"nonce"`
		PreviousHash string `json:"previous_hash"`
		Version      int    `json:"version"`
	}{
		MerkleRoot:   b.Header.MerkleRoot,
		Nonce:        b.Header.Nonce,
		PreviousHash: b.Header.PreviousHash,
		Version:      headerVersion,
	}

	return signature.Hash(h)
}

// Validate checks the block is solved, internally consistent, and links
// to the previous block. A genesis block is checked against the zero hash.
func (b Block) Validate(previousBlock *Block, difficulty uint, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block is the next block", b.Header.Index)

	switch previousBlock {
	case nil:
		if b.Header.Index != 0 || b.Header.PreviousHash != signature.ZeroHash {
			return fmt.Errorf("%w: expected genesis block, got index %d", ErrChainIntegrity, b.Header.Index)
		}

	default:
		if b.Header.PreviousHash != previousBlock.Hash() {
			return fmt.Errorf("%w: previous hash doesn't match our tip, got %s, exp %s", ErrChainIntegrity, b.Header.PreviousHash, previousBlock.Hash())
		}

		if b.Header.Index != previousBlock.Header.Index+1 {
			return fmt.Errorf("%w: this block is not the next number, got %d, exp %d", ErrChainIntegrity, b.Header.Index, previousBlock.Header.Index+1)
		}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Index)

	if b.Header.Difficulty != difficulty {
		return fmt.Errorf("%w: wrong difficulty, got %d, exp %d", ErrChainIntegrity, b.Header.Difficulty, difficulty)
	}

	hash := b.headerHash()
	if hash != b.Header.Hash {
		return fmt.Errorf("%w: header hash mismatch, got %s, exp %s", ErrChainIntegrity, b.Header.Hash, hash)
	}

	if !isHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("%w: %s invalid block hash", ErrChainIntegrity, hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Index)

	if b.Trans == nil {
		return fmt.Errorf("%w: block has no transactions", ErrChainIntegrity)
	}

	if b.Header.MerkleRoot != b.Trans.RootHex() {
		return fmt.Errorf("%w: merkle root does not match transactions, got %s, exp %s", ErrChainIntegrity, b.Trans.RootHex(), b.Header.MerkleRoot)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: transactions are valid", b.Header.Index)

	for _, tx := range b.Trans.Values() {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("tx[%s]: %w", tx.TxHash, err)
		}
	}

	return nil
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if len(hash) != 64 || difficulty > 64 {
		return false
	}

	return strings.Count(hash[:difficulty], "0") == int(difficulty)
}

// =============================================================================

// BlockData represents what is written to the chain snapshot and sent over
// the wire. The header fields are flattened next to the transactions.
type BlockData struct {
	BlockHeader
	Transactions []Tx `json:"transactions"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	bd := BlockData{
		BlockHeader:  block.Header,
		Transactions: block.Trans.Values(),
	}

	return bd
}

// ToBlock converts a BlockData into a Block.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Transactions)
	if err != nil {
		return Block{}, fmt.Errorf("%w: block %d: %s", ErrChainIntegrity, blockData.Index, err)
	}

	nb := Block{
		Header: blockData.BlockHeader,
		Trans:  tree,
	}

	return nb, nil
}
