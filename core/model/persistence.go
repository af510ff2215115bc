package model

import (
	"encoding/gob"
	"encoding/json"
	"io"
	"os"

	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// SaveModel はモデルを gob 形式でファイルに保存する
//
// パラメータ:
//   - model: 保存するモデル（エクスポートされたフィールドのみ保存される）
//   - filename: 保存先のファイルパス
//
// 使用例:
//
//	reg := ensemble.NewGBDTRegressor()
//	// ... モデルの学習 ...
//	err := model.SaveModel(reg, "youbike_gbdt.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create model file %s", filename)
	}
	defer file.Close()

	if err := SaveModelToWriter(model, file); err != nil {
		return err
	}
	return errors.Wrapf(file.Sync(), "sync model file %s", filename)
}

// LoadModel はファイルから gob 形式のモデルを読み込む
//
// 使用例:
//
//	var reg ensemble.GBDTRegressor
//	err := model.LoadModel(&reg, "youbike_gbdt.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "open model file %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルを io.Writer に保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "encode model")
	}
	return nil
}

// LoadModelFromReader は io.Reader からモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "decode model")
	}
	return nil
}

// SaveJSON は値をインデント付き JSON でファイルに保存する。
// スケーラのパラメータや特徴量名リストなど、人が読む成果物に使う
func SaveJSON(v interface{}, filename string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", filename)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	return nil
}

// LoadJSON は SaveJSON で保存したファイルを読み込む
func LoadJSON(v interface{}, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "read %s", filename)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "unmarshal %s", filename)
	}
	return nil
}
