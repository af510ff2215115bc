package config

import "time"

// Fixed artifact names. All paths are relative to Paths.WorkDir unless the
// configuration overrides them with an absolute path.
const (
	DefaultRawTransfersFile  = "2023_youbike_transfer_all.csv"
	DefaultCleanedFile       = "2023_youbike_rental_cleaned.csv"
	DefaultDailySummaryFile  = "2023_youbike_daily_summary.csv"
	DefaultDailyFeaturesFile = "2023_youbike_daily_features.csv"
	DefaultHolidaysFile      = "tw_holidays_2023.csv"
	DefaultWeatherFile       = "tpe_weather_2023.csv"
	DefaultFontFile          = "NotoSansTC-Regular.otf"
	DefaultGBDTModelFile     = "youbike_gbdt.gob"
	DefaultNNModelFile       = "youbike_nn_model.gob"
	DefaultScalerFile        = "youbike_scaler.json"
	DefaultFeatureListFile   = "youbike_feature_list.json"
	DefaultReportFile        = "2023_youbike_report.xlsx"
)

// Ingestion defaults.
const (
	DefaultPageLimit         = 10000
	DefaultRequestTimeout    = 30 * time.Second
	DefaultRequestsPerSecond = 2.0
	DefaultRequestBurst      = 1
)

// Model kinds accepted by the train stage.
const (
	ModelNN   = "nn"
	ModelGBDT = "gbdt"
)

// DefaultMonthResources maps each month of 2023 to its data.taipei resource.
func DefaultMonthResources() map[string]string {
	return map[string]string{
		"2023-01": "https://data.taipei/api/v1/dataset/d49d31c6-f53c-448d-a782-f5d82d18669f?scope=resourceAquire",
		"2023-02": "https://data.taipei/api/v1/dataset/abe3381b-88c5-4601-b6da-bf466e655ffc?scope=resourceAquire",
		"2023-03": "https://data.taipei/api/v1/dataset/65ee5383-cf71-4dc3-aeff-655b6f9c8356?scope=resourceAquire",
		"2023-04": "https://data.taipei/api/v1/dataset/acf1e719-d5e0-471e-a261-5989d34c8ddb?scope=resourceAquire",
		"2023-05": "https://data.taipei/api/v1/dataset/7deecfb2-28b2-4647-9002-42227314e17c?scope=resourceAquire",
		"2023-06": "https://data.taipei/api/v1/dataset/fbc4205e-1aa3-4674-8e3a-4ff62960bf30?scope=resourceAquire",
		"2023-07": "https://data.taipei/api/v1/dataset/ac971551-d594-4e84-895f-41a624ed7679?scope=resourceAquire",
		"2023-08": "https://data.taipei/api/v1/dataset/58defa98-c041-4988-97ee-fe3798177e67?scope=resourceAquire",
		"2023-09": "https://data.taipei/api/v1/dataset/f678018a-339f-40d0-a0f8-c544a8911b55?scope=resourceAquire",
		"2023-10": "https://data.taipei/api/v1/dataset/c0d56ec4-d176-47c1-897f-b747be1db0c3?scope=resourceAquire",
		"2023-11": "https://data.taipei/api/v1/dataset/be19e3ae-6c6e-480a-ace7-529bd84c1c3e?scope=resourceAquire",
		"2023-12": "https://data.taipei/api/v1/dataset/8ddb45ba-a0f5-41d6-85a0-1691096fdcf8?scope=resourceAquire",
	}
}
