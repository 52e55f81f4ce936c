package ledger

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewBlockHashIsDeterministic(t *testing.T) {
	txs := []Transaction{{From: "Consumer B", To: Escrow, Amount: 500}}
	a := NewBlock(3, "prev", txs, 1700000000.5)
	b := NewBlock(3, "prev", txs, 1700000000.5)
	if a.Hash != b.Hash {
		t.Fatalf("identical blocks hashed differently: %s vs %s", a.Hash, b.Hash)
	}
	if a.Hash != a.CalculateHash() {
		t.Fatal("stored hash differs from recomputed hash")
	}
	if a.Nonce != 0 {
		t.Fatalf("expected nonce 0, got %d", a.Nonce)
	}
}

func TestNewBlockCopiesTransactions(t *testing.T) {
	txs := []Transaction{{From: "A", To: "B", Amount: 1}}
	b := NewBlock(1, "prev", txs, 1)
	txs[0].Amount = 99
	if b.Transactions[0].Amount != 1 {
		t.Fatal("block shares its transaction slice with the caller")
	}
}

// TestCalculateHashCoversEveryField mutates each hashed field in turn and
// checks that the digest changes, while the stored hash itself does not
// contribute.
func TestCalculateHashCoversEveryField(t *testing.T) {
	base := NewBlock(1, "prev", []Transaction{{From: "A", To: "B", Amount: 1}}, 10)
	mutations := map[string]func(*Block){
		"index":         func(b *Block) { b.Index++ },
		"previous hash": func(b *Block) { b.PreviousHash = "other" },
		"timestamp":     func(b *Block) { b.Timestamp += 0.5 },
		"nonce":         func(b *Block) { b.Nonce++ },
		"amount":        func(b *Block) { b.Transactions[0].Amount = 2 },
		"sender":        func(b *Block) { b.Transactions[0].From = Mint },
		"receiver":      func(b *Block) { b.Transactions[0].To = Escrow },
		"extra tx":      func(b *Block) { b.Transactions = append(b.Transactions, Transaction{To: "C"}) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			b := base.clone()
			mutate(&b)
			if b.CalculateHash() == base.Hash {
				t.Fatalf("changing %s did not change the hash", name)
			}
		})
	}
	b := base.clone()
	b.Hash = "tampered"
	if b.CalculateHash() != base.Hash {
		t.Fatal("stored hash must not feed the digest")
	}
}

func TestMeetsDifficulty(t *testing.T) {
	b := Block{Hash: "00ab"}
	if !b.MeetsDifficulty(0) || !b.MeetsDifficulty(2) {
		t.Fatal("expected 00ab to meet difficulty 0 and 2")
	}
	if b.MeetsDifficulty(3) {
		t.Fatal("00ab must not meet difficulty 3")
	}
	if b.MeetsDifficulty(10) {
		t.Fatal("difficulty longer than the hash must fail")
	}
}

func TestPartyJSON(t *testing.T) {
	tx := Transaction{From: Mint, To: "Miner", Amount: 100}
	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"from":null,"to":"Miner","amount":100}` {
		t.Fatalf("unexpected encoding %s", got)
	}
	var decoded Transaction
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != tx {
		t.Fatalf("expected %+v, got %+v", tx, decoded)
	}
	if err := json.Unmarshal([]byte(`{"from":5}`), &decoded); err == nil {
		t.Fatal("expected an error decoding a numeric party")
	}
}

func TestBlockString(t *testing.T) {
	b := NewBlock(1, "prev", []Transaction{{From: Mint, To: "Miner", Amount: 100}}, 10)
	s := b.String()
	for _, want := range []string{`"index": 1`, `"previous_hash": "prev"`, `"from": null`, `"nonce": 0`, b.Hash} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in\n%s", want, s)
		}
	}
}
