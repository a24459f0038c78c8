// Copyright (c) EnvSync Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化，为 EnvSync 提供 OTLP gRPC
// 导出的 TracerProvider 与 MeterProvider。禁用时全局 provider 保持 noop，
// 只注册 W3C 传播器。
package telemetry
