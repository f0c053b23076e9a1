package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"DubFlow/config"
	"DubFlow/core/dubbing"
	"DubFlow/repository"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [request_id]",
	Short: "查看配音请求状态",
	Long:  `直接读取本地存储中的配音结果。服务运行时也可使用，存储文件有文件锁保护。不带参数时列出最近的请求。`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		results, err := repository.NewJSONResultRepository(cfg.ResultStorePath())
		if err != nil {
			log.Fatalf("打开结果存储失败: %v", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 0 {
			all, err := results.GetAllResults()
			if err != nil {
				log.Fatalf("读取结果失败: %v", err)
			}
			if statusLimit > 0 && len(all) > statusLimit {
				all = all[:statusLimit]
			}
			fmt.Println(renderTable([]string{"Request", "Status", "Created"}, resultRows(all), nil))
			return
		}

		res, err := results.GetResultByRequestID(args[0])
		if err != nil {
			log.Fatalf("读取结果失败: %v", err)
		}
		if res == nil {
			log.Fatalf("请求不存在: %s", args[0])
		}
		if err := enc.Encode(dubbing.StatusView(res)); err != nil {
			log.Fatalf("输出结果失败: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "列出请求的最大数量")
}
