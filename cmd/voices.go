package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"DubFlow/model"
)

var voicesJSON bool

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "列出可用的配音声音",
	Run: func(cmd *cobra.Command, args []string) {
		catalog := model.VoiceCatalog()
		if voicesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(catalog); err != nil {
				log.Fatalf("输出声音列表失败: %v", err)
			}
			return
		}

		fmt.Println(renderTable([]string{"Name", "Characteristics", "Recommended for"}, voiceRows(catalog), nil))
		fmt.Printf("\n共 %d 个声音\n", len(catalog))
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
	voicesCmd.Flags().BoolVar(&voicesJSON, "json", false, "以JSON格式输出")
}
