// Command sign-tx walks through building, signing, and verifying an
// order transaction offline. Run it to compare another client's bytes
// against this module's: the params hex, action JSON, signing bytes,
// and digest printed here are what the chain expects on the wire.
//
// With no arguments it generates a fresh keypair. Pass a 32-byte seed
// in hex to reproduce a previous run.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lightpool/lightpool-go/params"
	"github.com/lightpool/lightpool-go/pkg/crypto"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// Example ids from a devnet run. Swap in your own market and funding
// balance before submitting; the signature covers them.
var (
	exampleMarket  = types.ObjectID{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 31, 2, 32, 198, 126, 27, 175, 248, 230, 183, 248, 87, 124, 96, 142, 205, 87}
	exampleBalance = types.ObjectID{150, 156, 61, 36, 204, 43, 19, 131, 100, 227, 132, 75, 150, 44, 159, 138, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 28}
)

func main() {
	// Step 1: generate or load key
	var signer *crypto.Signer
	if len(os.Args) > 1 {
		fmt.Println("Loading key from seed...")
		s, err := crypto.FromSeedHex(os.Args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		signer = s
	} else {
		fmt.Println("Generating new keypair...")
		s, err := crypto.GenerateKey()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		signer = s
	}

	fmt.Printf("Address: %s\n", signer.Address())
	fmt.Printf("Seed: %s (KEEP SECRET!)\n\n", signer.SeedHex())

	// Step 2: order params
	limit := types.LimitOrderParams{TIF: types.GTC}
	order := types.PlaceOrderParams{
		Side:       types.Sell,
		Amount:     5_000_000,
		Type:       limit,
		LimitPrice: 50_000_000_000,
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Side: %s\n", order.Side)
	fmt.Printf("  Amount: %d\n", order.Amount)
	fmt.Printf("  Type: limit (%s)\n", limit.TIF)
	fmt.Printf("  Limit Price: %d\n\n", order.LimitPrice)

	fmt.Printf("Params (bincode): %s\n\n", hex.EncodeToString(order.Encode()))

	// Step 3: wrap in an action
	action := types.NewPlaceOrderAction(exampleMarket, exampleBalance, order)

	fmt.Printf("Action: %s on module %s\n", action.Name, action.Contract)
	fmt.Printf("  Market: %s\n", exampleMarket)
	fmt.Printf("  Balance: %s\n", exampleBalance)

	actionJSON, err := action.EncodeText()
	if err != nil {
		fmt.Printf("Error encoding action: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Action (JSON wire form):")
	fmt.Println(string(actionJSON))
	fmt.Println()

	// Step 4: build and sign the transaction
	signedTx, err := types.NewTxBuilder().
		Nonce(0).
		AddAction(action).
		BuildAndSign(signer)
	if err != nil {
		fmt.Printf("Error building transaction: %v\n", err)
		os.Exit(1)
	}
	tx := signedTx.Transaction

	fmt.Println("Transaction:")
	fmt.Printf("  Sender: %s\n", tx.Sender)
	fmt.Printf("  Nonce: %d\n", tx.Nonce)
	fmt.Printf("  Gas Budget: %d\n", tx.GasBudget)
	fmt.Printf("  Gas Price: %d\n\n", tx.GasPrice)

	fmt.Printf("Signing Bytes: %s\n", hex.EncodeToString(tx.SigningBytes()))
	fmt.Printf("Digest: %s\n\n", signedTx.Digest())

	sig := signedTx.Signatures[0]
	fmt.Println("Signature:")
	fmt.Printf("  Part 1: %s\n", hex.EncodeToString(sig.Part1[:]))
	fmt.Printf("  Part 2: %s\n\n", hex.EncodeToString(sig.Part2[:]))

	// Step 5: wrap in the submission envelope
	env := signer.Envelope(signedTx)
	envJSON, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling envelope: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Envelope (JSON):")
	fmt.Println(string(envJSON))
	fmt.Println()

	// Step 6: run the node's admission checks
	fmt.Println("Verifying envelope...")
	if err := crypto.VerifyEnvelope(env); err != nil {
		fmt.Printf("✗ Envelope INVALID: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Envelope VALID")
	fmt.Printf("  Digest matches: %v\n", tx.ComputeDigest() == env.Digest)
	fmt.Printf("  Sender key attached: %v\n\n", crypto.DeriveAddress(signer.PublicKey()) == tx.Sender)

	// Step 7: show how to submit
	submitReq := struct {
		Jsonrpc string             `json:"jsonrpc"`
		ID      int                `json:"id"`
		Method  string             `json:"method"`
		Params  []types.TxEnvelope `json:"params"`
	}{"2.0", 1, "submitTransaction", []types.TxEnvelope{env}}
	reqJSON, err := json.Marshal(submitReq)
	if err != nil {
		fmt.Printf("Error marshaling request: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("To submit this transaction to a node:")
	fmt.Printf("  POST %s/rpc\n", params.DefaultRPCURL)
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(reqJSON))
}
