package envfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// 💾 文件读写与备份轮转
// =============================================================================

const (
	// BackupInfix 备份文件名中缀：<path>.backup.<timestamp>
	BackupInfix = ".backup."
	// RestoreInfix 恢复前安全备份中缀：<path>.before_restore.<timestamp>
	RestoreInfix = ".before_restore."
	// TimestampLayout 14 位秒级时间戳
	TimestampLayout = "20060102150405"
)

// ErrBackupNotFound 指定的备份文件不存在
var ErrBackupNotFound = errors.New("backup file not found")

// Clock 时间来源，测试中可替换
type Clock func() time.Time

// Files 引导文件操作集合
type Files struct {
	now       Clock
	writeTemp func(path string, data []byte) (string, error)
}

// New 创建 Files，clock 为 nil 时使用 time.Now
func New(clock Clock) *Files {
	if clock == nil {
		clock = time.Now
	}
	return &Files{now: clock, writeTemp: writeTempFile}
}

// BackupPath 返回给定时刻的备份文件路径
func BackupPath(path string, at time.Time) string {
	return path + BackupInfix + at.Format(TimestampLayout)
}

// Load 读取并解析引导文件。文件不存在时返回空映射且不报错；
// 非法行通过 ValidationErrors 返回，合法行照常收集。
func (f *Files) Load(path string) (map[string]string, ValidationErrors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	values, verrs := Parse(string(data))
	return values, verrs, nil
}

// RotateBackup 若 path 已存在则重命名为带时间戳的备份，返回备份路径。
// 文件不存在时返回空字符串。同一秒内重复调用会覆盖前一个备份。
func (f *Files) RotateBackup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	backup := BackupPath(path, f.now())
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("rotate %s: %w", path, err)
	}
	return backup, nil
}

// Write 将映射序列化写入 path。内容先落到同目录的临时文件，成功后才轮转旧文件
// 并把临时文件改名到位，任一步失败时 path 保留原内容。
// rotate 为 true 时轮转已有文件，返回产生的备份路径（未轮转时为空）。
func (f *Files) Write(path string, values map[string]string, rotate bool) (string, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	content := Serialize(values, f.now().Format(time.RFC3339))
	tmp, err := f.writeTemp(path, []byte(content))
	if err != nil {
		return "", err
	}

	var backup string
	if rotate {
		if backup, err = f.RotateBackup(path); err != nil {
			os.Remove(tmp)
			return "", err
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		if backup != "" {
			if restoreErr := os.Rename(backup, path); restoreErr == nil {
				backup = ""
			}
		}
		return backup, fmt.Errorf("replace %s: %w", path, err)
	}
	return backup, nil
}

// writeTempFile 在 path 所在目录写入临时文件并返回其路径
func writeTempFile(path string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(name)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return name, nil
}

// ListBackups 返回 basePath 的全部备份文件，按修改时间从新到旧排序
func (f *Files) ListBackups(basePath string) ([]string, error) {
	matches, err := filepath.Glob(globEscape(basePath) + BackupInfix + "*")
	if err != nil {
		return nil, fmt.Errorf("list backups for %s: %w", basePath, err)
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, modTime: info.ModTime()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path > entries[j].path
		}
		return entries[i].modTime.After(entries[j].modTime)
	})

	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.path)
	}
	return result, nil
}

// Restore 用备份覆盖 target。target 已存在时先重命名为 .before_restore.<timestamp>。
// 返回安全备份路径（target 不存在时为空）。
func (f *Files) Restore(backupPath, targetPath string) (string, error) {
	if _, err := os.Stat(backupPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrBackupNotFound, backupPath)
		}
		return "", fmt.Errorf("stat %s: %w", backupPath, err)
	}

	var safety string
	if _, err := os.Stat(targetPath); err == nil {
		safety = targetPath + RestoreInfix + f.now().Format(TimestampLayout)
		if err := os.Rename(targetPath, safety); err != nil {
			return "", fmt.Errorf("set aside %s: %w", targetPath, err)
		}
	}

	if err := copyFile(backupPath, targetPath); err != nil {
		return safety, err
	}
	return safety, nil
}

// Merge 合并两个引导文件并写回 target（带轮转）。
// overwrite 为 true 时 source 的值覆盖 target 中的同名键，否则 target 优先。
func (f *Files) Merge(sourcePath, targetPath string, overwrite bool) (map[string]string, error) {
	source, _, err := f.Load(sourcePath)
	if err != nil {
		return nil, err
	}
	target, _, err := f.Load(targetPath)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(source)+len(target))
	first, second := source, target
	if overwrite {
		first, second = target, source
	}
	for k, v := range first {
		merged[k] = v
	}
	for k, v := range second {
		merged[k] = v
	}

	if _, err := f.Write(targetPath, merged, true); err != nil {
		return nil, err
	}
	return merged, nil
}

// Validate 逐行校验文件：缺少 '='、空键、键包含非法字符
func (f *Files) Validate(path string) (ValidationErrors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	_, errs := Parse(string(data))

	for i, raw := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		if !ValidKey(key) {
			errs = append(errs, LineError{
				Line:    i + 1,
				Message: fmt.Sprintf("invalid key %q (only alphanumeric and underscore allowed)", key),
			})
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Line < errs[j].Line })
	return errs, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	// 与 copy2 一致保留修改时间
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// globEscape 转义路径中的通配符
func globEscape(path string) string {
	replacer := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return replacer.Replace(path)
}
