package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragboletin/internal/answer"
	"github.com/koopa0/ragboletin/internal/warehouse"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question grounded on the ingested normas",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 5, "number of normas retrieved as context")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}

	pool, closePool, err := newPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePool()

	g, embedder, err := newGenkit(ctx, cfg)
	if err != nil {
		return err
	}

	wh := warehouse.New(pool, embedder, logger.With("component", "warehouse"))
	svc := answer.NewService(wh, answer.NewGenkitGenerator(g, cfg.ModelName), askTopK,
		logger.With("component", "answer"))

	ans, err := svc.Ask(ctx, strings.Join(args, " "))
	if errors.Is(err, answer.ErrNoContext) {
		fmt.Println("No relevant normas found. Run 'ragboletin backfill' first.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println(ans.Text)
	fmt.Println()
	fmt.Println("Sources:")
	for _, h := range ans.Sources {
		label := strings.TrimSpace(h.TipoNorma + " " + h.NumeroNorma)
		if label == "" {
			label = "norma"
		}
		fmt.Printf("  [%d] %s: %s\n", h.IDNorma, label, h.TituloResumido)
	}
	return nil
}
