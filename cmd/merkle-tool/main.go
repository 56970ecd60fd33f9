// merkle-tool builds a distribution Merkle tree from a recipients CSV and
// prints the root plus per-recipient proofs. Useful for auditing a batch
// commitment before or after submission.
//
// CSV format, one row per recipient, no header:
//
//	0xRecipientAddress,amount_in_wei
//
// Usage:
//
//	merkle-tool -csv recipients.csv
//	merkle-tool -csv recipients.csv -recipient 0xabc...   # single proof
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"airdrop-backend/internal/merkle"

	"github.com/ethereum/go-ethereum/common"
)

type proofEntry struct {
	Recipient string   `json:"recipient"`
	Amount    string   `json:"amount"`
	Proof     []string `json:"proof"`
}

type output struct {
	Root       string       `json:"merkle_root"`
	LeafCount  int          `json:"leaf_count"`
	TotalWei   string       `json:"total_wei"`
	Recipients []proofEntry `json:"recipients"`
}

func main() {
	csvPath := flag.String("csv", "", "path to recipients CSV (address,amount_wei)")
	only := flag.String("recipient", "", "print the proof for this address only")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	recipients, amounts, err := readRecipients(*csvPath)
	if err != nil {
		log.Fatalf("❌ Failed to read recipients: %v", err)
	}

	tree, err := merkle.NewTree(recipients, amounts)
	if err != nil {
		log.Fatalf("❌ Failed to build tree: %v", err)
	}

	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a)
	}

	out := output{
		Root:      tree.Root().Hex(),
		LeafCount: len(recipients),
		TotalWei:  total.String(),
	}

	for i, recipient := range recipients {
		if *only != "" && !strings.EqualFold(recipient.Hex(), common.HexToAddress(*only).Hex()) {
			continue
		}
		proof, err := tree.ProofFor(recipient, amounts[i])
		if err != nil {
			log.Fatalf("❌ Failed to build proof for %s: %v", recipient.Hex(), err)
		}
		hexProof := make([]string, len(proof))
		for j, p := range proof {
			hexProof[j] = p.Hex()
		}
		out.Recipients = append(out.Recipients, proofEntry{
			Recipient: recipient.Hex(),
			Amount:    amounts[i].String(),
			Proof:     hexProof,
		})
	}

	if *only != "" && len(out.Recipients) == 0 {
		log.Fatalf("❌ Recipient %s not found in CSV", *only)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("❌ Failed to encode output: %v", err)
	}
	fmt.Println(string(encoded))
}

func readRecipients(path string) ([]common.Address, []*big.Int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	recipients := make([]common.Address, 0, len(rows))
	amounts := make([]*big.Int, 0, len(rows))
	for i, row := range rows {
		addr := strings.TrimSpace(row[0])
		if !common.IsHexAddress(addr) {
			return nil, nil, fmt.Errorf("row %d: invalid address %q", i+1, addr)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(row[1]), 10)
		if !ok || amount.Sign() <= 0 {
			return nil, nil, fmt.Errorf("row %d: invalid amount %q", i+1, row[1])
		}
		recipients = append(recipients, common.HexToAddress(addr))
		amounts = append(amounts, amount)
	}
	return recipients, amounts, nil
}
