package ocr

const (
	// DefaultBinary is the tesseract executable resolved on PATH.
	DefaultBinary = "tesseract"

	// WindowsInstallPath is where the Windows installer puts tesseract.
	WindowsInstallPath = `C:\Program Files\Tesseract-OCR\tesseract.exe`

	// DefaultLang is the recognition language when none is configured.
	DefaultLang = "eng"

	// TempFilePrefix names staged image files handed to the CLI engine.
	TempFilePrefix = "percept_ocr_"
)
