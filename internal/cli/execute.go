package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loopfi/routerd/internal/router"
	"github.com/loopfi/routerd/internal/wire"
)

var executeCmd = &cobra.Command{
	Use:   "execute <batch-file>",
	Short: "Execute one instruction batch against the local state",
	Long: `Execute a wire-encoded instruction batch against the node's local
state, without going through the RPC server. With --simulate the batch
runs against a working copy and its effects are discarded.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().Bool("simulate", false, "run the batch without committing its effects")
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	var batch router.Batch
	if err := wire.Unmarshal(raw, &batch); err != nil {
		return fmt.Errorf("decode batch: %w", err)
	}

	n, err := buildNode(cfg, log)
	if err != nil {
		return err
	}
	defer n.close()

	simulate, _ := cmd.Flags().GetBool("simulate")
	ctx := context.Background()

	var res *router.Result
	if simulate {
		res, err = n.engine.Simulate(ctx, batch)
	} else {
		res, err = n.engine.Execute(ctx, batch)
	}
	if err != nil {
		return err
	}

	fmt.Printf("digest:      %s\n", hex.EncodeToString(res.Digest[:]))
	fmt.Printf("committed:   %t\n", res.Committed)
	fmt.Printf("flash loans: %d\n", res.FlashLoans)
	fmt.Printf("duration:    %s\n", res.Duration)
	fmt.Println("cells:")
	for i, c := range res.Cells {
		fmt.Printf("  [%d] %d %s (origin %d, %s)\n", i, c.Amount, c.Token, c.Origin, c.Kind)
	}
	return nil
}
