package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sellerstudio/imageprep/internal/archive"
	"github.com/sellerstudio/imageprep/internal/config"
	"github.com/sellerstudio/imageprep/internal/finish"
	"github.com/sellerstudio/imageprep/internal/logging"
	"github.com/sellerstudio/imageprep/internal/pipeline"
)

// CLI flags
var (
	productFileFlag string
	nameFlag        string
	articleFlag     string
	imagesFlag      string
	archiveFlag     string
	jsonFlag        bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "imageprep",
	Short: "Product image preparation pipeline for e-commerce listings",
	Long: `Imageprep takes a product's candidate images and runs the full preparation
pipeline: locate the best image set, generate SEO alt tags and filenames,
upscale resolution, compress to the target size band, and host the results.

Capabilities are configured through environment variables (OPENAI_API_KEY,
UPSCALE_API_TOKEN, OPTIMIZE_API_KEY, HOSTING_BUCKET); any that are missing
simply degrade the run instead of failing it.

Examples:
  imageprep --product product.json
  imageprep --name "Чайник электрический" --article KT-100 --images urls.txt
  imageprep --product product.json --archive bundle.zip --json`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&productFileFlag, "product", "p", "", "Path to a product JSON file")
	rootCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Product name (alternative to --product)")
	rootCmd.Flags().StringVar(&articleFlag, "article", "", "Product article / SKU")
	rootCmd.Flags().StringVarP(&imagesFlag, "images", "i", "", "Path to a file with candidate image URLs, one per line")
	rootCmd.Flags().StringVar(&archiveFlag, "archive", "", "Write a ZIP bundle of the results to this path")
	rootCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the full result summary as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	// .env is a developer convenience; absence is normal.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env")
	}
	logging.Init(true)

	product, err := loadProduct()
	if err != nil {
		return err
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	var s3Client *s3.Client
	if cfg.Hosting.Enabled() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		s3Client = s3.NewFromConfig(awsCfg)
	}

	summary, err := pipeline.Build(cfg, s3Client).Run(ctx, product)
	if err != nil {
		return err
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	} else {
		fmt.Println(summary.Text())
		for i, r := range summary.Results {
			fmt.Printf("  %d. [%d] %s\n     alt: %s\n     %s\n", i+1, r.Confidence, r.SeoFilename, r.AltTag, r.ProcessedImageURL)
		}
	}

	if archiveFlag != "" {
		if err := writeArchive(ctx, product, summary.Results); err != nil {
			return err
		}
		log.Info().Str("path", archiveFlag).Msg("Result bundle written")
	}
	return nil
}

// loadProduct builds the product from --product or the individual flags.
func loadProduct() (config.Product, error) {
	if productFileFlag != "" {
		return config.LoadProduct(productFileFlag)
	}
	if nameFlag == "" {
		return config.Product{}, fmt.Errorf("either --product or --name is required")
	}
	p := config.Product{Name: nameFlag, Article: articleFlag}
	if imagesFlag != "" {
		data, err := os.ReadFile(imagesFlag)
		if err != nil {
			return config.Product{}, fmt.Errorf("read images file: %w", err)
		}
		p.UserSelected = string(data)
	}
	return p, nil
}

func writeArchive(ctx context.Context, product config.Product, results []finish.Result) error {
	f, err := os.Create(archiveFlag)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()
	if err := archive.Export(ctx, f, product, results, finish.NewHTTPFetcher()); err != nil {
		return err
	}
	return f.Close()
}
