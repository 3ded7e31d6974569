package widget

// Element classes shared with the stylesheet below.
const (
	classStyle        = "helper-widget-styles"
	classOverlay      = "helper-widget-overlay"
	classLoading      = "helper-widget-loading-overlay"
	classSpinner      = "helper-widget-spinner"
	classWrapper      = "helper-widget-wrapper"
	classIframe       = "helper-widget-iframe"
	classToggleButton = "helper-widget-toggle-button"
	classIcon         = "helper-widget-icon"
	classHandIcon     = "hand-icon"

	classVisible             = "visible"
	classMinimized           = "minimized"
	classWithMinimizedWidget = "with-minimized-widget"
)

const stylesheet = `
.helper-widget-overlay {
  position: fixed; inset: 0; background: rgba(0, 0, 0, 0.2);
  opacity: 0; pointer-events: none; transition: opacity 0.3s ease; z-index: 9997;
}
.helper-widget-overlay.visible { opacity: 1; pointer-events: auto; }
.helper-widget-wrapper {
  position: fixed; top: 0; right: 0; bottom: 0; width: 520px; max-width: 100vw;
  transform: translateX(100%); transition: transform 0.3s ease; z-index: 9998;
}
.helper-widget-wrapper.visible { transform: translateX(0); }
.helper-widget-wrapper.minimized { top: auto; height: 64px; }
.helper-widget-iframe { border: 0; width: 100%; height: 100%; }
.helper-widget-loading-overlay {
  position: absolute; inset: 0; display: none; align-items: center; justify-content: center; background: #fff;
}
.helper-widget-loading-overlay.visible { display: flex; }
.helper-widget-spinner {
  width: 24px; height: 24px; border: 2px solid #ddd; border-top-color: #222; border-radius: 50%;
  animation: helper-widget-spin 0.8s linear infinite;
}
@keyframes helper-widget-spin { to { transform: rotate(360deg); } }
.helper-widget-toggle-button {
  position: fixed; right: 20px; bottom: 20px; width: 48px; height: 48px; border-radius: 50%;
  display: none; z-index: 9996;
}
.helper-widget-toggle-button.visible { display: block; }
.helper-widget-toggle-button.with-minimized-widget { bottom: 84px; }
.helper-widget-icon {
  position: fixed; right: 20px; bottom: 20px; width: 52px; height: 52px; border-radius: 50%; border: 0; z-index: 9996;
}
.helper-widget-icon.has-notification::after {
  content: ""; position: absolute; top: 4px; right: 4px; width: 10px; height: 10px; border-radius: 50%; background: #e11d48;
}
.notification-container {
  position: fixed; right: 20px; bottom: 20px; display: flex; flex-direction: column; gap: 8px; z-index: 9995;
}
.notification-container.with-widget { bottom: 84px; }
.notification-bubble { opacity: 0; transform: translateY(8px); transition: all 0.3s ease; }
.notification-bubble.visible { opacity: 1; transform: translateY(0); }
.notification-bubble.hiding { opacity: 0; transform: translateY(8px); }
`
