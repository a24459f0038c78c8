// Package config 提供 EnvSync 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → ENVSYNC_ 前缀环境变量 的顺序叠加，
// 加载后由 Config.Validate 一次性报告全部问题。
package config
