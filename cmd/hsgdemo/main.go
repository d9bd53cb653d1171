// Command hsgdemo exercises the Hierarchical Storage Graph engine end to
// end against an in-memory store: each run either adds one memory or runs
// one query, printing the ranked hits. The store lives only for the
// duration of a single run, so a query does not see memories added by an
// earlier run (the second example below prints "no hits").
//
// Examples:
//
//	go run ./cmd/hsgdemo -user alice add "Yesterday I went for a run and felt great"
//	go run ./cmd/hsgdemo -user alice query "how did I feel yesterday"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgconfig"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgcrypto"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgembed"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgengine"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/hsgstore"
	"github.com/lucivskvn/openmemory-hsg/internal/hsg/model"
)

func main() {
	userID := flag.String("user", "demo", "tenant id")
	topK := flag.Int("k", 5, "number of query hits to print")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: hsgdemo [-user id] [-k n] <add|query> <text>")
		os.Exit(2)
	}
	cmd, text := args[0], strings.Join(args[1:], " ")

	sectors := model.DefaultSectorTable()
	store := hsgstore.NewInMemoryStore()
	embedder := hsgembed.AutoEmbedder(sectors)
	masterKey := []byte(envOr("HSG_MASTER_KEY", "demo-master-key-please-override!"))
	crypto, err := hsgcrypto.NewService(masterKey)
	if err != nil {
		log.Fatalf("hsgdemo: crypto: %v", err)
	}

	cfg := hsgconfig.DefaultConfig()
	cfg.Sectors = sectors
	cfg.IsTest = true

	engine := hsgengine.New(store, embedder, crypto, cfg)
	defer engine.Close()

	ctx := context.Background()
	switch cmd {
	case "add":
		res, err := engine.AddMemory(ctx, hsgengine.AddRequest{UserID: *userID, Content: text})
		if err != nil {
			log.Fatalf("hsgdemo: add: %v", err)
		}
		if res.Dedup {
			fmt.Printf("reinforced existing memory %s (sector=%s, salience=%.3f)\n", res.Memory.ID, res.Memory.Primary, res.Memory.Salience)
		} else {
			fmt.Printf("added memory %s (sector=%s)\n", res.Memory.ID, res.Memory.Primary)
		}
	case "query":
		result, err := engine.Query(ctx, hsgengine.QueryRequest{UserID: *userID, Query: text, TopK: *topK})
		if err != nil {
			log.Fatalf("hsgdemo: query: %v", err)
		}
		if len(result.Hits) == 0 {
			fmt.Println("no hits")
			return
		}
		for i, hit := range result.Hits {
			plaintext, err := crypto.Decrypt(*userID, string(hit.Memory.Content))
			if err != nil {
				plaintext = []byte("<decrypt error>")
			}
			fmt.Printf("%d. [%s] score=%.4f %s\n", i+1, hit.Memory.Primary, hit.Score, string(plaintext))
		}
	default:
		fmt.Fprintf(os.Stderr, "hsgdemo: unknown command %q\n", cmd)
		os.Exit(2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
