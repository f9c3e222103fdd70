//go:build mage
// +build mage

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	composeFile    = "docker-compose.dev.yml"
	composeProject = "sweepcache-dev"
	reportsDir     = "./reports"
)

// Default 默认任务：显示帮助信息
func Default() {
	fmt.Println("sweepcache 构建系统")
	fmt.Println("===================")
	fmt.Println("可用任务:")
	fmt.Println("  mage build          - 构建 sweepcache 二进制文件")
	fmt.Println("  mage test           - 运行所有测试")
	fmt.Println("  mage testUnit       - 运行单元测试")
	fmt.Println("  mage testRace       - 开启竞态检测运行测试")
	fmt.Println("  mage benchmark      - 运行缓存性能基准测试")
	fmt.Println("  mage docker:env     - 启动依赖环境 (Redis + InfluxDB)")
	fmt.Println("  mage docker:down    - 停止所有服务")
	fmt.Println("  mage clean          - 清理构建产物")
	fmt.Println("  mage lint           - 运行代码检查")
	fmt.Println("  mage coverage       - 生成测试覆盖率报告")
	fmt.Println("  mage writeConfig    - 生成默认配置文件")
}

// Build 构建二进制文件
func Build() error {
	mg.Deps(Clean)

	output := filepath.Join("./dist", "sweepcache")
	if runtime.GOOS == "windows" {
		output += ".exe"
	}

	fmt.Println("📦 构建 sweepcache...")
	cmd := exec.Command("go", "build", "-o", output, "./cmd/sweepcache")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("构建失败: %v\n输出: %s", err, string(out))
	}

	if info, err := os.Stat(output); err == nil {
		fmt.Printf("   ✅ sweepcache: %d MB\n", info.Size()/1024/1024)
	}
	return nil
}

// Test 运行所有测试
func Test() error {
	mg.Deps(TestUnit, TestRace)
	return nil
}

// TestUnit 运行单元测试
func TestUnit() error {
	fmt.Println("🧪 运行单元测试...")
	if !isRedisRunning() {
		fmt.Println("⚠️  Redis 未运行，回源相关测试只覆盖不可用路径")
	}
	if err := sh.RunV("go", "test", "./...", "-timeout=5m"); err != nil {
		return fmt.Errorf("单元测试失败: %v", err)
	}
	fmt.Println("✅ 单元测试通过!")
	return nil
}

// TestRace 开启竞态检测运行缓存和调度器测试
func TestRace() error {
	fmt.Println("🏁 运行竞态检测...")
	return sh.RunV("go", "test", "-race", "./pkg/cache/...", "./pkg/scheduler/...", "-timeout=5m")
}

// Benchmark 运行性能基准测试
func Benchmark() error {
	fmt.Println("📊 运行性能基准测试...")

	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %v", err)
	}

	outputFile, err := os.Create(filepath.Join(reportsDir, "benchmark.txt"))
	if err != nil {
		return fmt.Errorf("创建基准测试报告失败: %v", err)
	}
	defer outputFile.Close()

	cmd := exec.Command("go", "test", "./pkg/cache", "-bench=.", "-benchmem", "-run=^$", "-timeout=15m")
	cmd.Stdout = outputFile
	cmd.Stderr = outputFile

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("基准测试失败: %v", err)
	}

	fmt.Printf("✅ 基准测试完成! 报告保存到 %s\n", filepath.Join(reportsDir, "benchmark.txt"))
	return nil
}

// WriteConfig 生成默认配置文件
func WriteConfig() error {
	return sh.RunV("go", "run", "./cmd/sweepcache", "-write-config", "./config/sweepcache.yaml")
}

type Docker mg.Namespace

// Env 启动依赖环境 (redis, influxdb)
func (Docker) Env() error {
	fmt.Println("🚀 启动依赖环境 (redis, influxdb)...")
	return compose("up", "-d", "redis", "influxdb")
}

// Down 停止所有开发环境服务
func (Docker) Down() error {
	fmt.Println("🛑 停止所有开发环境服务...")
	return compose("down")
}

// Status 查看服务状态
func (Docker) Status() error {
	return compose("ps")
}

// Logs 查看服务日志
func (Docker) Logs() error {
	return compose("logs", "-f", "--tail=100")
}

// Clean 清理构建产物
func Clean() error {
	fmt.Println("🧹 清理构建产物...")

	if err := os.MkdirAll("./dist", 0755); err != nil {
		return fmt.Errorf("创建 dist 目录失败: %v", err)
	}

	files, err := filepath.Glob("./dist/*")
	if err != nil {
		return fmt.Errorf("查找文件失败: %v", err)
	}
	for _, file := range files {
		if err := os.Remove(file); err != nil {
			fmt.Printf("警告: 无法删除文件 %s: %v\n", file, err)
		}
	}

	if err := os.RemoveAll(filepath.Join(reportsDir, "coverage.out")); err != nil && !os.IsNotExist(err) {
		fmt.Printf("警告: 清理覆盖率文件失败: %v\n", err)
	}

	fmt.Println("✅ 清理完成!")
	return nil
}

// Lint 运行代码检查
func Lint() error {
	fmt.Println("🔍 运行代码检查...")

	output, err := exec.Command("gofmt", "-l", ".").CombinedOutput()
	if err != nil {
		return fmt.Errorf("gofmt 检查失败: %v", err)
	}
	if len(output) > 0 {
		return fmt.Errorf("以下文件格式不正确:\n%s", string(output))
	}

	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return fmt.Errorf("go vet 检查失败: %v", err)
	}

	fmt.Println("✅ 代码检查通过!")
	return nil
}

// Coverage 生成测试覆盖率报告
func Coverage() error {
	fmt.Println("📈 生成测试覆盖率报告...")

	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %v", err)
	}

	profile := filepath.Join(reportsDir, "coverage.out")
	html := filepath.Join(reportsDir, "coverage.html")

	if err := sh.Run("go", "test", "./pkg/...", "-coverprofile="+profile, "-covermode=atomic"); err != nil {
		return fmt.Errorf("生成覆盖率失败: %v", err)
	}
	if err := sh.Run("go", "tool", "cover", "-html="+profile, "-o", html); err != nil {
		return fmt.Errorf("生成HTML报告失败: %v", err)
	}
	if err := sh.RunV("go", "tool", "cover", "-func="+profile); err != nil {
		return fmt.Errorf("显示覆盖率失败: %v", err)
	}

	fmt.Println("   详细报告: file://" + getAbsolutePath(html))
	return nil
}

func compose(args ...string) error {
	return sh.RunV("docker-compose", append([]string{"-f", composeFile, "-p", composeProject}, args...)...)
}

func isRedisRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "exec", "sweepcache-redis-dev", "redis-cli", "ping")
	return cmd.Run() == nil
}

func getAbsolutePath(relativePath string) string {
	absPath, err := filepath.Abs(relativePath)
	if err != nil {
		return relativePath
	}
	return absPath
}
