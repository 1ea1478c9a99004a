package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileModeReadOnly rw-r--r-- (擁有者讀寫，其他人唯讀)
const FileModeReadOnly fs.FileMode = 0644

// WAL 以 JSON lines 格式追加寫入的 Write-Ahead Log
type WAL struct {
	file     *os.File
	mu       sync.Mutex
	syncFile func(*os.File) error
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式 (ReadAll 需要)
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, err
	}
	return &WAL{file: file, syncFile: (*os.File).Sync}, nil
}

// Write 寫入一筆資料並刷入硬碟，回傳 nil 代表資料已落地
//
// 寫入或 Sync 失敗時截斷回寫入前的位置，檔案中不會留下未確認的紀錄
func (w *WAL) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	offset, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(data); err != nil {
		return w.rollback(offset, err)
	}
	if err := w.syncFile(w.file); err != nil {
		return w.rollback(offset, err)
	}
	return nil
}

func (w *WAL) rollback(offset int64, cause error) error {
	if err := w.file.Truncate(offset); err != nil {
		return errors.Join(cause, err)
	}
	if _, err := w.file.Seek(offset, io.SeekStart); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 從頭依序讀取所有資料，callback 收到單筆 JSON
//
// 檔尾若有寫到一半的紀錄 (crash 時中斷)，會截斷到最後一筆完整紀錄，
// 之後的 Write 從截斷處接續
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			if err := w.file.Truncate(good); err != nil {
				return err
			}
			break
		}
		if err != nil {
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
		good = decoder.InputOffset()
	}

	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}
