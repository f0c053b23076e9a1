package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"DubFlow/config"
	"DubFlow/storage"
)

var (
	minioPrefix string
	minioStats  bool
	minioRemove string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO归档管理",
	Long:  `查看MinIO存储桶中归档的配音音频，支持按前缀列出文件、查看统计信息以及删除某个请求的归档。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		// 加载配置
		cfg := config.Load()
		if !cfg.ArchiveEnabled() {
			log.Fatal("未配置MINIO_ENDPOINT，音频归档未启用")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		archive, err := storage.NewMinioArchive(ctx, cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		if minioRemove != "" {
			fmt.Printf("\n删除请求 %s 的归档音频\n", minioRemove)
			if err := archive.Remove(ctx, minioRemove); err != nil {
				log.Fatalf("删除失败: %v", err)
			}
			fmt.Println("\nMinIO操作完成！")
			return
		}

		objects, stats, err := archive.List(ctx, minioPrefix)
		if err != nil {
			log.Fatalf("列出文件失败: %v", err)
		}

		if minioStats {
			// 显示存储桶统计信息
			fmt.Printf("\n存储桶: %s\n", archive.Bucket())
			fmt.Printf("文件数量: %d\n", stats.TotalObjects)
			fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最后修改: %s\n", stats.LastModified.Format(timeLayout))
			}
		} else {
			// 列出文件
			fmt.Printf("\n列出存储桶中的文件 (前缀: %s)...\n", minioPrefix)
			fmt.Println(renderTable([]string{"Key", "Size", "Modified"}, objectRows(objects), []columnAlignment{alignLeft, alignRight, alignLeft}))
			fmt.Printf("\n共 %d 个文件\n", len(objects))
		}

		fmt.Println("\nMinIO操作完成！")
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	// 添加命令行参数
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件，默认 outputs/")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().StringVarP(&minioRemove, "remove", "d", "", "删除指定请求ID的归档音频")

	// 添加使用说明
	minioCmd.Example = `  # 列出所有归档音频
  dubflow_server minio

  # 显示存储桶统计信息
  dubflow_server minio -s

  # 删除某个请求的归档
  dubflow_server minio -d 3f2c...`
}
