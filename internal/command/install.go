package command

import "runtime"

// PopplerInstallGuide returns installation instructions for poppler-utils
// (pdftoppm, pdftotext) on the given GOOS.
func PopplerInstallGuide(goos string) string {
	switch goos {
	case "windows":
		return `Poppler installation for Windows:
  1. Download Poppler for Windows from https://github.com/oschwartz10612/poppler-windows/releases/
  2. Extract the downloaded archive
  3. Add its bin directory to your PATH environment variable
  4. Restart your terminal
  Or install via conda: conda install -c conda-forge poppler`
	case "darwin":
		return `Poppler installation for macOS:
  1. Install using Homebrew: brew install poppler
  2. Restart your terminal`
	case "linux":
		return `Poppler installation for Linux:
  1. Ubuntu/Debian: sudo apt-get install poppler-utils
  2. Fedora: sudo dnf install poppler-utils
  3. Restart your terminal`
	default:
		return "Please install poppler-utils for your operating system."
	}
}

// TesseractInstallGuide returns installation instructions for tesseract on
// the given GOOS.
func TesseractInstallGuide(goos string) string {
	switch goos {
	case "windows":
		return "Tesseract installation for Windows: download the installer from https://github.com/UB-Mannheim/tesseract/wiki and add it to PATH"
	case "darwin":
		return "Tesseract installation for macOS: brew install tesseract"
	case "linux":
		return "Tesseract installation for Linux: sudo apt-get install tesseract-ocr (Debian/Ubuntu) or sudo dnf install tesseract (Fedora)"
	default:
		return "Please install tesseract-ocr for your operating system."
	}
}

// HostPopplerInstallGuide is PopplerInstallGuide for the running OS.
func HostPopplerInstallGuide() string {
	return PopplerInstallGuide(runtime.GOOS)
}

// HostTesseractInstallGuide is TesseractInstallGuide for the running OS.
func HostTesseractInstallGuide() string {
	return TesseractInstallGuide(runtime.GOOS)
}
