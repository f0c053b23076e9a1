package cmd

import (
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动DubFlow服务器",
	Long:  `启动DubFlow视频配音HTTP服务，提供上传、状态查询、下载和自定义配音API`,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
