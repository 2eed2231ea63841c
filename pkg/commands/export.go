package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"medsoc-cms/pkg/services"

	"github.com/spf13/cobra"
)

var (
	exportDir       string
	exportFormat    string
	exportDrafts    bool
	exportLanguages []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write articles as Hugo content files",
	Long: `Writes one content file per article and language under
<dir>/<category>/<slug>/index.<lang>.md (or .json), with front matter in the
chosen format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch exportFormat {
		case "yaml", "toml", "json":
		default:
			return fmt.Errorf("unsupported format: %s", exportFormat)
		}
		for _, lang := range exportLanguages {
			if !services.IsLanguage(lang) {
				return fmt.Errorf("unsupported language: %s", lang)
			}
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		articles, err := a.articles.List(cmd.Context(), services.ArticleFilter{PublishedOnly: !exportDrafts})
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			printInfo("No articles to export")
			return nil
		}

		written := 0
		for i := range articles {
			// List does not load images; fetch the full record.
			article, err := a.articles.Get(cmd.Context(), articles[i].ID)
			if err != nil {
				return err
			}
			for _, lang := range exportLanguages {
				content, err := services.ExportArticle(article, lang, exportFormat)
				if err != nil {
					return err
				}
				rel := services.ExportPath(article, lang, exportFormat)
				target := services.SafeJoin(exportDir, "", rel)
				if target == "" {
					return fmt.Errorf("article %s: export path %q leaves %s", article.ID, rel, exportDir)
				}
				if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
					return err
				}
				if err := os.WriteFile(target, content, 0644); err != nil {
					return err
				}
				if verbose {
					printMuted("  %s", target)
				}
				written++
			}
		}
		printSuccess("Exported %d files to %s", written, exportDir)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", "content", "Output directory")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Front matter format: yaml, toml or json")
	exportCmd.Flags().BoolVar(&exportDrafts, "drafts", false, "Include unpublished articles")
	exportCmd.Flags().StringSliceVar(&exportLanguages, "lang", services.Languages, "Languages to export")
	rootCmd.AddCommand(exportCmd)
}
