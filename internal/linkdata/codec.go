package linkdata

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentVersion 当前载荷编码版本。编码结构变更时必须递增，
// 读取端按嵌入的 version 字段分发，没有独立的 schema 迁移路径。
const CurrentVersion = 1

var (
	// ErrCorruptPayload 载荷无法解码。不能静默降级为空记录，
	// 否则一致性检查会把真实的数据损坏当成正常状态。
	ErrCorruptPayload = errors.New("linkdata: corrupt payload")

	// ErrUnsupportedVersion 载荷版本高于当前读取端所知的版本
	ErrUnsupportedVersion = errors.New("linkdata: unsupported payload version")
)

type payloadV1 struct {
	Version  int             `json:"version"`
	Parent   *PostRef        `json:"parent,omitempty"`
	Children map[int64]int64 `json:"children,omitempty"`
}

// Marshal 编码为自描述的版本化 JSON
func (d *BroadcastData) Marshal() ([]byte, error) {
	p := payloadV1{Version: CurrentVersion, Parent: d.parent}
	if len(d.children) > 0 {
		p.Children = d.children
	}
	return json.Marshal(p)
}

// Unmarshal 解码存储载荷；返回的记录 modified 为 false。
// 解码失败返回包装了 ErrCorruptPayload 的错误。
func Unmarshal(data []byte) (*BroadcastData, error) {
	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	switch head.Version {
	case 1:
		var p payloadV1
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		d := &BroadcastData{version: p.Version, parent: p.Parent, children: p.Children}
		if d.children == nil {
			d.children = map[int64]int64{}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, head.Version)
	}
}
